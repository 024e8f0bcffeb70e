package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/config"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/httpserver"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/oracle"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/scoring"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.DevSecret() {
		log.Warn().Msg("JWT_SECRET is the development default")
	}

	var scorer game.ScoringOracle = scoring.Oracle{}
	if cfg.ScoringOracleURL != "" {
		scorer = oracle.NewClient(oracle.Config{BaseURL: cfg.ScoringOracleURL, Timeout: cfg.OracleTimeout})
		log.Info().Str("url", cfg.ScoringOracleURL).Msg("using remote scoring oracle")
	}
	var advisor outcome.Oracle
	if cfg.OutcomeOracleURL != "" {
		advisor = oracle.NewClient(oracle.Config{BaseURL: cfg.OutcomeOracleURL, Timeout: cfg.OracleTimeout})
		log.Info().Str("url", cfg.OutcomeOracleURL).Msg("advice enabled")
	} else {
		log.Info().Msg("OUTCOME_ORACLE_URL not set, advice disabled")
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	srv := httpserver.New(httpserver.Deps{
		Config:  cfg,
		Store:   store.NewMemoryStore(),
		DB:      db,
		Scorer:  scorer,
		Outcome: advisor,
	})
	log.Info().Str("port", cfg.Port).Msg("starting go-server")
	if err := srv.Start(cfg.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
