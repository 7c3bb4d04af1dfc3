package main

import (
	"log"

	"wealthadvisor-ai/internal/bootstrap"
	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// OpenDatabase migrates as part of connecting.
	db, err := bootstrap.OpenDatabase(cfg, sysLogger)
	if err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Printf("Migration complete (pgvector tables: %t)", cfg.Retrieval.Backend == bootstrap.BackendPgvector)
}
