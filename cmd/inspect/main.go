package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/context-scheduler/internal/rules"
	"github.com/danielpatrickdp/context-scheduler/internal/timing"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to scheduler database")
	taskType := flag.String("task", "", "filter slots to one task type")
	contextKey := flag.String("context", "", "filter slots to one context key")
	minFeedback := flag.Int("min-feedback", 0, "only show slots with at least N outcomes")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/scheduler.db [--task type] [--context key] [--min-feedback N] [--json]")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	catalog, err := rules.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
		os.Exit(1)
	}
	slots, err := timing.NewStore(db, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load slots: %v\n", err)
		os.Exit(1)
	}

	allRules := catalog.ListAll()
	learned := slots.List(*taskType, *contextKey, *minFeedback)

	if *jsonOut {
		out := map[string]interface{}{"rules": allRules, "timing_slots": learned}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printRules(allRules)
	fmt.Println()
	printSlots(learned)
}

// #endregion

// #region rules-table

func printRules(all []rules.Rule) {
	fmt.Printf("RULES (%d)\n", len(all))
	fmt.Printf("%-5s %-28s %-8s %-8s %-10s\n", "ID", "NAME", "WEIGHT", "ACTIVE", "SOURCE")
	for _, r := range all {
		active := "yes"
		if !r.IsActive {
			active = "no"
		}
		fmt.Printf("%-5d %-28s %-8.2f %-8s %-10s\n", r.ID, clip(r.Name, 28), r.Weight, active, r.Source)
	}
}

// #endregion

// #region slots-table

func printSlots(learned []timing.Slot) {
	fmt.Printf("TIMING SLOTS (%d, most confident first)\n", len(learned))
	fmt.Printf("%-12s %-44s %-6s %-12s %-10s\n", "TASK", "CONTEXT", "LEAD", "BETA(a,b)", "CONF")
	for _, s := range learned {
		fmt.Printf("%-12s %-44s %-6d Beta(%g,%g)  %.3f\n",
			clip(s.TaskType, 12), clip(s.ContextKey, 44), s.LeadTimeMinutes, s.Alpha, s.Beta, s.Confidence())
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// #endregion
