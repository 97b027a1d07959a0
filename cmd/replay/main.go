package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/context-scheduler/internal/auditlog"
	"github.com/danielpatrickdp/context-scheduler/internal/extraction"
	"github.com/danielpatrickdp/context-scheduler/internal/learning"
	"github.com/danielpatrickdp/context-scheduler/internal/rules"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #region fixture-types

// fixtureRecord is one feedback event in a replay fixture file.
type fixtureRecord struct {
	RuleID         int64          `json:"rule_id"`
	Outcome        string         `json:"outcome"`
	ChosenLeadTime int            `json:"chosen_lead_time"`
	Context        fixtureContext `json:"context"`
}

type fixtureContext struct {
	Timestamp             string                 `json:"timestamp"`
	Activity              string                 `json:"activity"`
	SpeedKmh              float64                `json:"speed_kmh"`
	CarBluetoothConnected bool                   `json:"car_bluetooth_connected"`
	WifiSSID              string                 `json:"wifi_ssid"`
	LocationVector        string                 `json:"location_vector"`
	Extras                map[string]interface{} `json:"extras"`
}

type fixture struct {
	Records []fixtureRecord `json:"records"`
}

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to scheduler database")
	fixturePath := flag.String("fixture", "", "path to feedback fixture JSON")
	flag.Parse()

	if *dbPath == "" || *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/scheduler.db --fixture path/to/feedback.json")
		os.Exit(2)
	}

	if err := run(*dbPath, *fixturePath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion

// #region run

func run(dbPath, fixturePath string) error {
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fix fixture
	if err := json.Unmarshal(raw, &fix); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	catalog, err := rules.NewStore(db)
	if err != nil {
		return err
	}
	slots, err := timing.NewStore(db, nil)
	if err != nil {
		return err
	}
	if err := auditlog.Init(db); err != nil {
		return err
	}

	var mu sync.RWMutex
	svc := learning.NewService(&mu, db, catalog, slots)

	applied, failed := 0, 0
	for i, rec := range fix.Records {
		snapshot, err := rec.Context.toContext()
		if err != nil {
			fmt.Printf("[%d] skipped: %v\n", i, err)
			failed++
			continue
		}

		res, err := svc.ApplyFeedback(rec.RuleID, auditlog.Outcome(rec.Outcome), snapshot, rec.ChosenLeadTime)
		if err != nil {
			fmt.Printf("[%d] rule %d %s: %v\n", i, rec.RuleID, rec.Outcome, err)
			failed++
			continue
		}
		applied++
		fmt.Printf("[%d] rule %d (%s) %s: weight %.2f→%.2f, slot %s/%dmin conf %.3f→%.3f\n",
			i, res.RuleID, res.TaskName, res.Outcome,
			res.OldWeight, res.NewWeight,
			res.ContextKey, res.ChosenLeadTime,
			res.OldConfidence, res.NewConfidence)
	}

	fmt.Printf("\nreplayed %d records (%d applied, %d failed)\n", len(fix.Records), applied, failed)

	fmt.Println("\nfinal weights:")
	for _, r := range catalog.ListAll() {
		fmt.Printf("  %-4d %-28s %.2f\n", r.ID, r.Name, r.Weight)
	}
	return nil
}

// #endregion

// #region context-conversion

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (c fixtureContext) toContext() (extraction.Context, error) {
	var stamp time.Time
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, c.Timestamp); err == nil {
			stamp = parsed
			break
		}
	}
	if stamp.IsZero() {
		return extraction.Context{}, fmt.Errorf("unparseable timestamp %q", c.Timestamp)
	}
	return extraction.Context{
		Timestamp:             stamp,
		Activity:              extraction.Activity(c.Activity),
		SpeedKmh:              c.SpeedKmh,
		CarBluetoothConnected: c.CarBluetoothConnected,
		WifiSSID:              c.WifiSSID,
		LocationVector:        c.LocationVector,
		Extras:                c.Extras,
	}, nil
}

// #endregion
