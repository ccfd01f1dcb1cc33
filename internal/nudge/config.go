// Package nudge implements the proactive-intelligence rule engine: a
// deterministic evaluator over the knowledge graph that surfaces
// follow-ups, travel prep, stale projects, birthdays, and relationship
// insights. Ported from pi-nudge-engine.py.
package nudge

import "github.com/openclaw/kgraph/internal/logging"

var log = logging.GetLogger("nudge")

// Kind identifies which rule produced a Nudge.
type Kind string

const (
	KindFollowUp            Kind = "follow_up"
	KindTravelPrep           Kind = "travel_prep"
	KindStaleProject         Kind = "stale_project"
	KindBirthday             Kind = "birthday"
	KindRelationshipInsight  Kind = "relationship_insight"
)

// StaleThresholds is the per-entity-type day count after which an entity
// is considered due for a follow-up or stale-project nudge.
type StaleThresholds struct {
	Person  int `mapstructure:"person"`
	Project int `mapstructure:"project"`
	Org     int `mapstructure:"org"`
	Event   int `mapstructure:"event"`
}

// QuietHours is the local-time window during which nudges are
// suppressed. Start/End wrap past midnight when Start > End.
type QuietHours struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// PriorityWeights assigns a base priority to each nudge kind; rule
// functions may add a situational boost on top (e.g. imminent travel).
type PriorityWeights struct {
	Birthday             int `mapstructure:"birthday"`
	TravelPrep           int `mapstructure:"travel_prep"`
	FollowUp             int `mapstructure:"follow_up"`
	StaleProject         int `mapstructure:"stale_project"`
	RelationshipInsight  int `mapstructure:"relationship_insight"`
	Opportunity          int `mapstructure:"opportunity"`
}

// Config tunes every rule in the engine. Defaults mirror
// pi-nudge-engine.py's DEFAULT_CONFIG exactly; OwnerName and Timezone
// generalize what the prototype hardcoded (a specific person's name and
// America/New_York) into configuration.
type Config struct {
	StaleThresholds       StaleThresholds `mapstructure:"stale_thresholds_days"`
	TravelAlertDays       []int           `mapstructure:"travel_alert_days"`
	BirthdayAlertDays     int             `mapstructure:"birthday_alert_days"`
	QuietHours            QuietHours      `mapstructure:"quiet_hours"`
	MaxNudgesPerDay       int             `mapstructure:"max_nudges_per_day"`
	PriorityWeights       PriorityWeights `mapstructure:"priority_weights"`
	MinStrengthForFollowup float64        `mapstructure:"min_strength_for_followup"`

	// OwnerName excludes the graph's own "self" person entity from
	// follow-up and relationship-insight rules. The prototype hardcoded
	// this as "Adam McCargo"; here it is a configuration value, and the
	// default empty string excludes no entity.
	OwnerName string `mapstructure:"owner_name"`
	// Timezone is the IANA zone used for quiet-hours evaluation. The
	// prototype hardcoded "America/New_York"; this generalizes it.
	Timezone string `mapstructure:"timezone"`
}

// DefaultConfig returns the engine defaults, ported field-for-field from
// DEFAULT_CONFIG in pi-nudge-engine.py.
func DefaultConfig() Config {
	return Config{
		StaleThresholds: StaleThresholds{Person: 14, Project: 10, Org: 30, Event: 7},
		TravelAlertDays: []int{7, 3, 1},
		BirthdayAlertDays: 7,
		QuietHours: QuietHours{Start: 23, End: 8},
		MaxNudgesPerDay: 5,
		PriorityWeights: PriorityWeights{
			Birthday: 10, TravelPrep: 9, FollowUp: 7, StaleProject: 6, RelationshipInsight: 5, Opportunity: 4,
		},
		MinStrengthForFollowup: 0.5,
		Timezone: "America/New_York",
	}
}
