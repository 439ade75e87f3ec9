package main

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"rifa/api/internal/config"
	"rifa/api/internal/db"
	"rifa/api/internal/db/seeds"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("could not load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.WithError(err).Fatal("could not create data directory")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.WithError(err).Fatal("could not apply migrations")
	}

	log.Info("running seeds...")
	if err := seeds.Run(database, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.WithError(err).Fatal("seeds failed")
	}
	log.Info("seeds finished")
}
