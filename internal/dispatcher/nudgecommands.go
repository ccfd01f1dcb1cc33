package dispatcher

import (
	"context"

	"github.com/openclaw/kgraph/internal/nudge"
)

// RegisterNudge wires the nudge bridge command table into d, mirroring
// pi-nudge-engine.py's dispatch: check_all, check_followups,
// check_travel, check_birthdays, check_stale_projects, check_insights,
// morning_briefing, relationship_review.
func RegisterNudge(d *Dispatcher, e *nudge.Engine) {
	d.Register("check_all", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckAll(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("check_followups", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckFollowUps(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("check_travel", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckTravel(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("check_birthdays", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckBirthdays(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("check_stale_projects", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckStaleProjects(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("check_insights", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		nudges, err := e.CheckRelationshipInsights(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nudges": nudges, "count": len(nudges)}, nil
	})

	d.Register("morning_briefing", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		briefing, err := e.MorningBriefing(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"nudges": briefing.Nudges, "shown": briefing.Shown, "total_available": briefing.TotalAvailable,
		}, nil
	})

	d.Register("relationship_review", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		entries, err := e.RelationshipReview(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries, "count": len(entries)}, nil
	})
}
