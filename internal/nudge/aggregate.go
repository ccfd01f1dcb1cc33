package nudge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/openclaw/kgraph/internal/clock"
	"github.com/openclaw/kgraph/internal/storage"
)

// runAllChecks runs every rule and returns the combined nudges sorted by
// priority descending, with no cap applied. Shared by CheckAll and
// MorningBriefing, each of which applies the MaxNudgesPerDay cap itself
// (MorningBriefing also reports the pre-cap count alongside the capped
// one).
func (e *Engine) runAllChecks(ctx context.Context) ([]Nudge, error) {
	var all []Nudge

	checks := []func(context.Context) ([]Nudge, error){
		e.CheckFollowUps,
		e.CheckTravel,
		e.CheckStaleProjects,
		e.CheckBirthdays,
		e.CheckRelationshipInsights,
	}
	for _, check := range checks {
		nudges, err := check(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, nudges...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })
	return all, nil
}

// CheckAll runs every rule and returns the combined nudges sorted by
// priority descending, truncated to MaxNudgesPerDay. Ported from
// main()'s check_all dispatch, which does nudges[:max_n] on this exact
// command.
func (e *Engine) CheckAll(ctx context.Context) ([]Nudge, error) {
	all, err := e.runAllChecks(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > e.config.MaxNudgesPerDay {
		all = all[:e.config.MaxNudgesPerDay]
	}
	return all, nil
}

// MorningBriefing aggregates every rule's nudges, truncated to
// MaxNudgesPerDay, with the pre-cap and shown counts. It returns no graph
// statistics. Ported from morning_briefing. Quiet hours are not checked
// here: the morning-briefing CLI command checks IsQuietHours before
// invoking this, while the dispatcher's morning_briefing command invokes
// it unconditionally.
func (e *Engine) MorningBriefing(ctx context.Context) (*Briefing, error) {
	all, err := e.runAllChecks(ctx)
	if err != nil {
		return nil, err
	}

	shown := all
	if len(shown) > e.config.MaxNudgesPerDay {
		shown = shown[:e.config.MaxNudgesPerDay]
	}

	return &Briefing{
		TotalAvailable: len(all),
		Shown:          len(shown),
		Nudges:         shown,
	}, nil
}

// RelationshipReview lists up to five stale contacts ranked by
// relationship strength, along with who they're connected to. Stale
// means not mentioned within stale_thresholds.person days; contacts
// whose strongest relation falls below min_strength_for_followup are
// excluded, unless they have no relations at all. Ordered by
// (strength DESC, last_mentioned ASC). Ported from relationship_review.
func (e *Engine) RelationshipReview(ctx context.Context) ([]ReviewEntry, error) {
	now := clock.Now()
	var entries []ReviewEntry
	err := e.pool.WithScope(ctx, func(s *storage.Scope) error {
		rows, err := s.Query(`
			SELECT e.id, e.name, e.notes, e.last_mentioned, e.mention_count,
			       MAX(r.strength) AS max_strength,
			       GROUP_CONCAT(DISTINCT t.name) AS connected_to
			FROM kg_entities e
			LEFT JOIN kg_relations r ON (r.source_id = e.id OR r.target_id = e.id)
			LEFT JOIN kg_entities t ON (
				(r.source_id = t.id AND t.id != e.id) OR
				(r.target_id = t.id AND t.id != e.id)
			)
			WHERE e.type = 'person'
			  AND e.name != ? COLLATE NOCASE
			  AND e.last_mentioned < datetime('now', ?)
			GROUP BY e.id
			HAVING max_strength >= ? OR max_strength IS NULL
			ORDER BY max_strength DESC, e.last_mentioned ASC
			LIMIT 5
		`, e.config.OwnerName, fmt.Sprintf("-%d days", e.config.StaleThresholds.Person), e.config.MinStrengthForFollowup)
		if err != nil {
			return fmt.Errorf("relationship_review query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var name, notes, lastMentioned string
			var mentionCount int
			var maxStrength sql.NullFloat64
			var connected *string
			if err := rows.Scan(&id, &name, &notes, &lastMentioned, &mentionCount, &maxStrength, &connected); err != nil {
				return err
			}
			connectedStr := ""
			if connected != nil {
				connectedStr = truncateConnections(*connected, 5)
			}
			entries = append(entries, ReviewEntry{
				EntityID:     id,
				Name:         name,
				Notes:        notes,
				DaysAgo:      daysSince(lastMentioned, now),
				MentionCount: mentionCount,
				Strength:     maxStrength.Float64,
				ConnectedTo:  connectedStr,
			})
		}
		return rows.Err()
	})
	return entries, err
}

// truncateConnections keeps at most the first n comma-separated names.
func truncateConnections(concat string, n int) string {
	names := strings.Split(concat, ",")
	if len(names) > n {
		names = names[:n]
	}
	return strings.Join(names, ", ")
}
