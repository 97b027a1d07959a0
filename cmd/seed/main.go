package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/context-scheduler/internal/rules"
)

// #region main

func main() {
	dbPath := flag.String("db", "scheduler.db", "path to scheduler database")
	force := flag.Bool("force", false, "seed even if rules already exist")
	flag.Parse()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	catalog, err := rules.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init catalog: %v\n", err)
		os.Exit(1)
	}

	if existing := len(catalog.ListAll()); existing > 0 && !*force {
		fmt.Printf("catalog already has %d rules, nothing to do (use --force to seed anyway)\n", existing)
		return
	}

	created := 0
	for _, r := range defaultRules() {
		if _, err := catalog.Create(r); err != nil {
			fmt.Fprintf(os.Stderr, "seed %q: %v\n", r.Name, err)
			os.Exit(1)
		}
		created++
	}
	fmt.Printf("seeded %d rules into %s\n", created, *dbPath)
}

// #endregion

// #region default-rules

// defaultRules is the starter catalog covering common commute, work, and
// evening routines.
func defaultRules() []rules.Rule {
	return []rules.Rule{
		{
			Name:        "Get Fuel",
			Description: "Stop at gas station on your commute",
			TriggerCondition: map[string]interface{}{
				"activity_type":   "IN_VEHICLE",
				"time_range":      "07:00-10:00",
				"location_vector": "leaving_home",
				"min_speed":       15.0,
				"is_weekday":      true,
			},
			Weight:   0.75,
			IsActive: true,
		},
		{
			Name:        "Stop for Coffee",
			Description: "Grab coffee on your morning commute",
			TriggerCondition: map[string]interface{}{
				"activity_type":   "IN_VEHICLE",
				"time_range":      "07:00-09:30",
				"location_vector": "leaving_home",
				"car_bluetooth":   true,
				"is_weekday":      true,
			},
			Weight:   0.80,
			IsActive: true,
		},
		{
			Name:        "Review Morning Emails",
			Description: "Check important emails when arriving at work",
			TriggerCondition: map[string]interface{}{
				"activity":          "STATIONARY",
				"time_range":        "08:00-09:30",
				"location_category": "work",
				"is_weekday":        true,
			},
			Weight:   0.85,
			IsActive: true,
		},
		{
			Name:        "Lunch Break Reminder",
			Description: "Time to take a break and eat",
			TriggerCondition: map[string]interface{}{
				"activity":          "STATIONARY",
				"time_range":        "12:00-13:30",
				"location_category": "work",
				"is_weekday":        true,
			},
			Weight:   0.65,
			IsActive: true,
		},
		{
			Name:        "Buy Groceries",
			Description: "Pick up groceries on the way home",
			TriggerCondition: map[string]interface{}{
				"activity":   "TRAVELING",
				"time_range": "16:30-19:00",
				"is_weekday": true,
			},
			Weight:   0.70,
			IsActive: true,
		},
		{
			Name:        "Gym Workout",
			Description: "Evening workout session",
			TriggerCondition: map[string]interface{}{
				"activity":          "STATIONARY",
				"time_range":        "17:30-20:00",
				"location_category": "home",
			},
			Weight:   0.70,
			IsActive: true,
		},
		{
			Name:        "Take Medication",
			Description: "Evening medication reminder",
			TriggerCondition: map[string]interface{}{
				"time":              "21:00",
				"location_category": "home",
			},
			Weight:   0.90,
			IsActive: true,
		},
		{
			Name:        "Weekend Planning",
			Description: "Plan the week ahead",
			TriggerCondition: map[string]interface{}{
				"activity":   "STATIONARY",
				"time_range": "10:00-12:00",
				"is_weekday": false,
			},
			Weight:   0.60,
			IsActive: true,
		},
	}
}

// #endregion
