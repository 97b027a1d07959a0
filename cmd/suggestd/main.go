package main

import (
	"database/sql"
	"log"
	"net/http"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/context-scheduler/internal/api"
	"github.com/danielpatrickdp/context-scheduler/internal/auditlog"
	"github.com/danielpatrickdp/context-scheduler/internal/calendar"
	"github.com/danielpatrickdp/context-scheduler/internal/config"
	"github.com/danielpatrickdp/context-scheduler/internal/inference"
	"github.com/danielpatrickdp/context-scheduler/internal/learning"
	"github.com/danielpatrickdp/context-scheduler/internal/rules"
	"github.com/danielpatrickdp/context-scheduler/internal/search"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #region main

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	catalog, err := rules.NewStore(db)
	if err != nil {
		log.Fatalf("init rule catalog: %v", err)
	}
	slots, err := timing.NewStore(db, cfg.LeadTimes)
	if err != nil {
		log.Fatalf("init timing store: %v", err)
	}
	if err := auditlog.Init(db); err != nil {
		log.Fatalf("init audit log: %v", err)
	}

	var mu sync.RWMutex
	engine := inference.NewEngine(&mu, catalog, slots, search.NewScheduler(cfg.MaxSearchNodes))
	learner := learning.NewService(&mu, db, catalog, slots)
	cal := calendar.NewService(&mu, catalog)

	server := api.NewServer(engine, learner, cal, db, cfg.EnableSearch)

	log.Printf("suggestd listening on %s (db=%s, search=%v, lead_times=%v)",
		cfg.ListenAddr, cfg.DBPath, cfg.EnableSearch, slots.LeadTimes())
	if err := http.ListenAndServe(cfg.ListenAddr, server.Handler()); err != nil {
		log.Fatalf("suggestd failed: %v", err)
	}
}

// #endregion

// #region open-db

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	return db, nil
}

// #endregion
