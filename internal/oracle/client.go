// Package oracle is an HTTP client for a remote Yahtzee analysis server.
//
// One Client serves both contracts the game needs: box scoring
// (POST /rest/v1/score) and outcome distributions (POST /rest/v1/outcome_distribution).
// Requests are never retried; the caller decides what a failure means.
//
//	c := oracle.NewClient(oracle.Config{BaseURL: "http://localhost:8080"})
//	score, err := c.Score(ctx, game.FullHouse, [5]int{2, 2, 3, 3, 3})
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/metrics"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
)

var (
	_ game.ScoringOracle = (*Client)(nil)
	_ outcome.Oracle     = (*Client)(nil)
)

const (
	scorePath   = "/rest/v1/score"
	outcomePath = "/rest/v1/outcome_distribution"
)

// Config holds configuration for the oracle client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080". Required.
	BaseURL string

	// Timeout bounds a single request. Defaults to 10 seconds if zero.
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	HTTPClient *http.Client
}

// Client talks to one analysis server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: strings.TrimRight(cfg.BaseURL, "/"), http: hc}
}

// Score asks the server what dice would score in box.
func (c *Client) Score(ctx context.Context, box game.Box, dice [game.NumDice]int) (int, error) {
	var resp ScoreResponse
	if err := c.post(ctx, "score", scorePath, ScoreRequest{Box: int(box), Dice: dice}, &resp); err != nil {
		return 0, err
	}
	if resp.Score < 0 {
		return 0, fmt.Errorf("%w: negative score %d", ErrMalformed, resp.Score)
	}
	return resp.Score, nil
}

// Distribution asks the server for every choice available at snap.
func (c *Client) Distribution(ctx context.Context, snap game.Snapshot) (outcome.Choices, error) {
	req, err := NewOutcomeDistributionRequest(snap)
	if err != nil {
		return nil, err
	}
	var resp OutcomeDistributionResponse
	if err := c.post(ctx, "outcome", outcomePath, req, &resp); err != nil {
		return nil, err
	}
	return resp.Choices(snap.Phase)
}

// post sends body as JSON and decodes a 200 response into out.
func (c *Client) post(ctx context.Context, name, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.OracleRequests.WithLabelValues(name, status).Inc()
		metrics.OracleLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("oracle: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("oracle: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
