package nudge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/kgraph/internal/clock"
	"github.com/openclaw/kgraph/internal/storage"
)

// Engine evaluates the five nudge rules against the knowledge graph.
// Every rule function is a direct port of the matching check_* function
// in pi-nudge-engine.py.
type Engine struct {
	pool   *storage.Pool
	config Config
}

// NewEngine builds an Engine over pool using cfg.
func NewEngine(pool *storage.Pool, cfg Config) *Engine {
	return &Engine{pool: pool, config: cfg}
}

// daysSince parses an ISO timestamp and returns days elapsed since then,
// or the sentinel 999 ("very stale") if ts is empty or unparsable —
// matching pi-nudge-engine.py's _days_since.
func daysSince(ts string, now time.Time) int {
	if ts == "" {
		return 999
	}
	t, err := clock.Parse(ts)
	if err != nil {
		return 999
	}
	return int(now.Sub(t).Hours() / 24)
}

func parseMetadata(raw string) map[string]any {
	m := map[string]any{}
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func metadataString(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// CheckFollowUps finds people not mentioned within the configured
// threshold whose strongest relation (if any) still clears the minimum
// follow-up strength. Ported from check_followups.
func (e *Engine) CheckFollowUps(ctx context.Context) ([]Nudge, error) {
	now := clock.Now()
	var nudges []Nudge
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`
			SELECT e.id, e.name, e.last_mentioned, MAX(r.strength) AS max_strength
			FROM kg_entities e
			LEFT JOIN kg_relations r ON r.source_id = e.id OR r.target_id = e.id
			WHERE e.type = 'person' AND e.name != ? COLLATE NOCASE
			  AND e.last_mentioned < datetime('now', ?)
			GROUP BY e.id
			HAVING max_strength >= ? OR max_strength IS NULL
			ORDER BY max_strength DESC, e.last_mentioned ASC
		`, e.config.OwnerName, fmt.Sprintf("-%d days", e.config.StaleThresholds.Person), e.config.MinStrengthForFollowup)
		if err != nil {
			return fmt.Errorf("check_followups query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var name, lastMentioned string
			var maxStrength sql.NullFloat64
			if err := rows.Scan(&id, &name, &lastMentioned, &maxStrength); err != nil {
				return err
			}
			daysAgo := daysSince(lastMentioned, now)
			nudges = append(nudges, Nudge{
				Kind:       KindFollowUp,
				Priority:   e.config.PriorityWeights.FollowUp,
				Message:    fmt.Sprintf("You haven't mentioned %s in %d days.", name, daysAgo),
				EntityID:   id,
				EntityName: name,
				Detail:     map[string]any{"days_ago": daysAgo},
			})
		}
		return rows.Err()
	})
	return nudges, err
}

// CheckTravel scans upcoming events for metadata.start_date and emits a
// nudge once the event falls within the farthest configured alert
// window, with rising urgency as the date approaches. Ported from
// check_travel.
func (e *Engine) CheckTravel(ctx context.Context) ([]Nudge, error) {
	now := clock.Now()
	maxAlert := 0
	for _, d := range e.config.TravelAlertDays {
		if d > maxAlert {
			maxAlert = d
		}
	}
	sortedThresholds := append([]int{}, e.config.TravelAlertDays...)
	sort.Ints(sortedThresholds)

	var nudges []Nudge
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`SELECT id, name, metadata FROM kg_entities WHERE type = 'event'`)
		if err != nil {
			return fmt.Errorf("check_travel query: %w", err)
		}
		defer rows.Close()

		type row struct {
			id       int64
			name     string
			metadata string
		}
		var all []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.name, &r.metadata); err != nil {
				return err
			}
			all = append(all, r)
		}
		rows.Close()

		for _, r := range all {
			meta := parseMetadata(r.metadata)
			startDateStr, _ := meta["start_date"].(string)
			if startDateStr == "" {
				continue
			}
			startDate, err := time.Parse("2006-01-02", startDateStr)
			if err != nil {
				continue
			}
			daysUntil := int(startDate.Sub(truncateToDay(now)).Hours() / 24)
			if daysUntil < 0 || daysUntil > maxAlert {
				continue
			}

			threshold := 0
			for _, th := range sortedThresholds {
				if th >= daysUntil {
					threshold = th
					break
				}
			}
			if threshold == 0 {
				continue
			}

			urgency := "upcoming"
			boost := 0
			switch {
			case daysUntil <= 1:
				urgency = "imminent"
				boost = 3
			case daysUntil <= 3:
				urgency = "soon"
				boost = 1
			}

			nudges = append(nudges, Nudge{
				Kind:       KindTravelPrep,
				Priority:   e.config.PriorityWeights.TravelPrep + boost,
				Message:    fmt.Sprintf("%s is in %d day(s) (%s) — time to prep.", r.name, daysUntil, urgency),
				EntityID:   r.id,
				EntityName: r.name,
				Detail:     map[string]any{"days_until": daysUntil, "urgency": urgency},
			})
		}
		return nil
	})
	return nudges, err
}

// CheckStaleProjects finds projects not mentioned within the configured
// threshold. Ported from check_stale_projects.
func (e *Engine) CheckStaleProjects(ctx context.Context) ([]Nudge, error) {
	now := clock.Now()
	var nudges []Nudge
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`
			SELECT id, name, metadata, last_mentioned FROM kg_entities
			WHERE type = 'project' AND last_mentioned < datetime('now', ?)
			ORDER BY last_mentioned ASC
		`, fmt.Sprintf("-%d days", e.config.StaleThresholds.Project))
		if err != nil {
			return fmt.Errorf("check_stale_projects query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var name, metadataJSON, lastMentioned string
			if err := rows.Scan(&id, &name, &metadataJSON, &lastMentioned); err != nil {
				return err
			}
			meta := parseMetadata(metadataJSON)
			status := metadataString(meta, "status", "unknown")
			daysAgo := daysSince(lastMentioned, now)
			nudges = append(nudges, Nudge{
				Kind:       KindStaleProject,
				Priority:   e.config.PriorityWeights.StaleProject,
				Message:    fmt.Sprintf("Project %s (%s) hasn't been mentioned in %d days.", name, status, daysAgo),
				EntityID:   id,
				EntityName: name,
				Detail:     map[string]any{"status": status, "days_ago": daysAgo},
			})
		}
		return rows.Err()
	})
	return nudges, err
}

// CheckBirthdays reads metadata.important_dates.birthday ("MM-DD") for
// every person and emits a nudge once the next occurrence falls within
// BirthdayAlertDays. A birthday of Feb 29 is skipped outright in
// non-leap years rather than rolled forward, matching the bare
// except(ValueError) in check_birthdays that silently drops it.
func (e *Engine) CheckBirthdays(ctx context.Context) ([]Nudge, error) {
	now := truncateToDay(clock.Now())
	var nudges []Nudge
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`SELECT id, name, metadata FROM kg_entities WHERE type = 'person'`)
		if err != nil {
			return fmt.Errorf("check_birthdays query: %w", err)
		}
		defer rows.Close()

		type row struct {
			id       int64
			name     string
			metadata string
		}
		var all []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.name, &r.metadata); err != nil {
				return err
			}
			all = append(all, r)
		}
		rows.Close()

		for _, r := range all {
			meta := parseMetadata(r.metadata)
			important, _ := meta["important_dates"].(map[string]any)
			if important == nil {
				continue
			}
			bday, _ := important["birthday"].(string)
			if bday == "" {
				continue
			}
			parts := strings.SplitN(bday, "-", 2)
			if len(parts) != 2 {
				continue
			}
			var month, day int
			if _, err := fmt.Sscanf(parts[0], "%d", &month); err != nil {
				continue
			}
			if _, err := fmt.Sscanf(parts[1], "%d", &day); err != nil {
				continue
			}

			next, ok := nextOccurrence(now, month, day)
			if !ok {
				continue // Feb 29 in a non-leap year: skip, don't roll forward
			}
			daysUntil := int(next.Sub(now).Hours() / 24)
			if daysUntil < 0 || daysUntil > e.config.BirthdayAlertDays {
				continue
			}

			nudges = append(nudges, Nudge{
				Kind:       KindBirthday,
				Priority:   e.config.PriorityWeights.Birthday,
				Message:    fmt.Sprintf("%s's birthday is in %d day(s).", r.name, daysUntil),
				EntityID:   r.id,
				EntityName: r.name,
				Detail:     map[string]any{"days_until": daysUntil},
			})
		}
		return nil
	})
	return nudges, err
}

// nextOccurrence returns the next date(year-or-next-year, month, day) at
// or after now, or false if that date does not exist (Feb 29, non-leap).
func nextOccurrence(now time.Time, month, day int) (time.Time, bool) {
	try := func(year int) (time.Time, bool) {
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if t.Month() != time.Month(month) || t.Day() != day {
			return time.Time{}, false // normalized away, e.g. Feb 29 -> Mar 1
		}
		return t, true
	}

	thisYear, ok := try(now.Year())
	if !ok {
		return time.Time{}, false
	}
	if !thisYear.Before(now) {
		return thisYear, true
	}
	nextYear, ok := try(now.Year() + 1)
	if !ok {
		return time.Time{}, false
	}
	return nextYear, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CheckRelationshipInsights finds upcoming events with a metadata
// location, tokenizes that location, matches tokens against known
// places, and surfaces the people connected to each matched place.
// Ported from check_relationship_insights.
func (e *Engine) CheckRelationshipInsights(ctx context.Context) ([]Nudge, error) {
	now := clock.Now()
	var nudges []Nudge
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`SELECT id, name, metadata FROM kg_entities WHERE type = 'event'`)
		if err != nil {
			return fmt.Errorf("check_relationship_insights query: %w", err)
		}
		defer rows.Close()

		type row struct {
			id       int64
			name     string
			metadata string
		}
		var events []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.name, &r.metadata); err != nil {
				return err
			}
			events = append(events, r)
		}
		rows.Close()

		for _, ev := range events {
			meta := parseMetadata(ev.metadata)
			startDateStr, _ := meta["start_date"].(string)
			location, _ := meta["location"].(string)
			if startDateStr == "" || location == "" {
				continue
			}
			startDate, err := time.Parse("2006-01-02", startDateStr)
			if err != nil {
				continue
			}
			daysUntil := int(startDate.Sub(truncateToDay(now)).Hours() / 24)
			if daysUntil < 0 || daysUntil > 30 {
				continue
			}

			for _, token := range tokenizeLocation(location) {
				placeRows, err := s.Query(`SELECT id, name FROM kg_entities WHERE type = 'place' AND name LIKE ? COLLATE NOCASE`,
					"%"+token+"%")
				if err != nil {
					return err
				}

				type place struct {
					id   int64
					name string
				}
				var places []place
				for placeRows.Next() {
					var p place
					if err := placeRows.Scan(&p.id, &p.name); err != nil {
						placeRows.Close()
						return err
					}
					places = append(places, p)
				}
				if err := placeRows.Err(); err != nil {
					placeRows.Close()
					return err
				}
				placeRows.Close()

				for _, p := range places {
					contacts, err := connectedPeople(s, p.id, e.config.OwnerName)
					if err != nil {
						return err
					}
					if len(contacts) == 0 {
						continue
					}

					nudges = append(nudges, Nudge{
						Kind:     KindRelationshipInsight,
						Priority: e.config.PriorityWeights.RelationshipInsight,
						Message: fmt.Sprintf("%s is near %s, where you know: %s.",
							ev.name, p.name, strings.Join(contacts, ", ")),
						EntityID:   ev.id,
						EntityName: ev.name,
						Detail:     map[string]any{"place": p.name, "contacts": contacts},
					})
				}
			}
		}
		return nil
	})
	return nudges, err
}

// tokenizeLocation splits a location string on commas and arrows,
// dropping tokens of length 2 or less, matching
// check_relationship_insights's tokenization.
func tokenizeLocation(location string) []string {
	replaced := strings.NewReplacer(",", "|", "→", "|").Replace(location)
	parts := strings.Split(replaced, "|")
	var tokens []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if len(p) > 2 {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func connectedPeople(s *storage.Scope, placeID int64, ownerName string) ([]string, error) {
	rows, err := s.Query(`
		SELECT DISTINCT oe.name
		FROM kg_relations r
		JOIN kg_entities oe ON oe.id = CASE WHEN r.source_id = ? THEN r.target_id ELSE r.source_id END
		WHERE (r.source_id = ? OR r.target_id = ?) AND oe.type = 'person' AND oe.name != ? COLLATE NOCASE
	`, placeID, placeID, placeID, ownerName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
