package nudge

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/storage"
)

func f64(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, cfg Config) (*Engine, *kg.Writer, *storage.Pool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kg.db")
	pool, err := storage.NewPool(path)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.CloseAll() })
	ctx := context.Background()
	if err := kg.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return NewEngine(pool, cfg), kg.NewWriter(pool), pool
}

func baseConfig() Config {
	cfg := DefaultConfig()
	cfg.OwnerName = "Self Person"
	return cfg
}

// backdate directly updates last_mentioned to simulate staleness,
// since UpsertEntity always stamps the current moment.
func backdate(t *testing.T, ctx context.Context, pool *storage.Pool, name string, days int) {
	t.Helper()
	err := pool.WithScope(ctx, func(s *storage.Scope) error {
		_, err := s.Exec(`UPDATE kg_entities SET last_mentioned = datetime('now', ?) WHERE name = ? COLLATE NOCASE`,
			fmt.Sprintf("-%d days", days), name)
		return err
	})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func TestCheckFollowUpsSkipsOwnerAndFreshMentions(t *testing.T) {
	ctx := context.Background()
	engine, w, pool := newTestEngine(t, baseConfig())

	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Self Person", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Fresh Friend", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Stale Friend", Type: kg.TypePerson})
	backdate(t, ctx, pool, "Stale Friend", 30)
	backdate(t, ctx, pool, "Self Person", 30)

	nudges, err := engine.CheckFollowUps(ctx)
	if err != nil {
		t.Fatalf("CheckFollowUps: %v", err)
	}
	if len(nudges) != 1 || nudges[0].EntityName != "Stale Friend" {
		t.Fatalf("expected exactly Stale Friend, got %+v", nudges)
	}
}

func TestCheckStaleProjectsReportsStatus(t *testing.T) {
	ctx := context.Background()
	engine, w, pool := newTestEngine(t, baseConfig())

	w.UpsertEntity(ctx, kg.UpsertEntityInput{
		Name: "Website Revamp", Type: kg.TypeProject, Metadata: kg.Metadata{"status": "blocked"},
	})
	backdate(t, ctx, pool, "Website Revamp", 20)

	nudges, err := engine.CheckStaleProjects(ctx)
	if err != nil {
		t.Fatalf("CheckStaleProjects: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("expected 1 stale project nudge, got %d", len(nudges))
	}
	if nudges[0].Detail["status"] != "blocked" {
		t.Fatalf("expected status blocked in detail, got %+v", nudges[0].Detail)
	}
}

func TestCheckBirthdaysWithinWindow(t *testing.T) {
	ctx := context.Background()
	engine, w, _ := newTestEngine(t, baseConfig())

	soon := time.Now().AddDate(0, 0, 3)
	bday := soon.Format("01-02")
	w.UpsertEntity(ctx, kg.UpsertEntityInput{
		Name: "Birthday Friend", Type: kg.TypePerson,
		Metadata: kg.Metadata{"important_dates": map[string]any{"birthday": bday}},
	})

	nudges, err := engine.CheckBirthdays(ctx)
	if err != nil {
		t.Fatalf("CheckBirthdays: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("expected 1 birthday nudge, got %d: %+v", len(nudges), nudges)
	}
}

func TestQuietHoursWrapsMidnight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.QuietHours = QuietHours{Start: 23, End: 8}

	late := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
	if !IsQuietHours(cfg, late) {
		t.Fatal("expected 23:30 to be quiet hours")
	}
	early := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	if !IsQuietHours(cfg, early) {
		t.Fatal("expected 06:00 to be quiet hours")
	}
	midday := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	if IsQuietHours(cfg, midday) {
		t.Fatal("expected 13:00 not to be quiet hours")
	}
}

func TestMorningBriefingCapsNudges(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.MaxNudgesPerDay = 1
	engine, w, pool := newTestEngine(t, cfg)

	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Friend One", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Friend Two", Type: kg.TypePerson})
	backdate(t, ctx, pool, "Friend One", 30)
	backdate(t, ctx, pool, "Friend Two", 30)

	briefing, err := engine.MorningBriefing(ctx)
	if err != nil {
		t.Fatalf("MorningBriefing: %v", err)
	}
	if briefing.Shown != 1 {
		t.Fatalf("expected nudges capped to 1, got %d", briefing.Shown)
	}
	if briefing.TotalAvailable < 2 {
		t.Fatalf("expected at least 2 available before capping, got %d", briefing.TotalAvailable)
	}
}

func TestCheckAllTruncatesToMaxNudgesPerDay(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.MaxNudgesPerDay = 1
	engine, w, pool := newTestEngine(t, cfg)

	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Friend One", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Friend Two", Type: kg.TypePerson})
	backdate(t, ctx, pool, "Friend One", 30)
	backdate(t, ctx, pool, "Friend Two", 30)

	nudges, err := engine.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("expected check_all output capped to max_nudges_per_day=1, got %d: %+v", len(nudges), nudges)
	}
}

func TestCheckTravelRaisesUrgencyAsDateApproaches(t *testing.T) {
	ctx := context.Background()
	engine, w, _ := newTestEngine(t, baseConfig())

	imminent := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	w.UpsertEntity(ctx, kg.UpsertEntityInput{
		Name: "Conference Trip", Type: kg.TypeEvent,
		Metadata: kg.Metadata{"start_date": imminent},
	})

	nudges, err := engine.CheckTravel(ctx)
	if err != nil {
		t.Fatalf("CheckTravel: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("expected 1 travel nudge, got %d: %+v", len(nudges), nudges)
	}
	if nudges[0].Detail["urgency"] != "imminent" {
		t.Fatalf("expected imminent urgency for a next-day trip, got %+v", nudges[0].Detail)
	}
}

func TestCheckRelationshipInsightsMatchesLocationToPlace(t *testing.T) {
	ctx := context.Background()
	engine, w, _ := newTestEngine(t, baseConfig())

	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Portland", Type: kg.TypePlace})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Pat Contact", Type: kg.TypePerson})
	w.UpsertRelation(ctx, kg.UpsertRelationInput{Source: "Portland", Target: "Pat Contact", Type: "lives_in"})

	soon := time.Now().AddDate(0, 0, 5).Format("2006-01-02")
	w.UpsertEntity(ctx, kg.UpsertEntityInput{
		Name: "West Coast Trip", Type: kg.TypeEvent,
		Metadata: kg.Metadata{"start_date": soon, "location": "Portland, OR"},
	})

	nudges, err := engine.CheckRelationshipInsights(ctx)
	if err != nil {
		t.Fatalf("CheckRelationshipInsights: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("expected 1 relationship insight, got %d: %+v", len(nudges), nudges)
	}
}

func TestRelationshipReviewListsConnections(t *testing.T) {
	ctx := context.Background()
	engine, w, pool := newTestEngine(t, baseConfig())

	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Stale Person", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Stale Person", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Acme", Type: kg.TypeOrg})
	w.UpsertRelation(ctx, kg.UpsertRelationInput{Source: "Stale Person", Target: "Acme", Type: "works_at", Strength: f64(0.9)})
	backdate(t, ctx, pool, "Stale Person", 60)

	// Fresh Person is within the staleness window and must be excluded.
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Fresh Person", Type: kg.TypePerson})
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Globex", Type: kg.TypeOrg})
	w.UpsertRelation(ctx, kg.UpsertRelationInput{Source: "Fresh Person", Target: "Globex", Type: "works_at", Strength: f64(0.95)})

	// Weak Contact is stale and has no relations at all; a NULL
	// max_strength passes the HAVING filter but sorts after any person
	// with a known strength.
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Weak Contact", Type: kg.TypePerson})
	backdate(t, ctx, pool, "Weak Contact", 20)

	review, err := engine.RelationshipReview(ctx)
	if err != nil {
		t.Fatalf("RelationshipReview: %v", err)
	}
	if len(review) != 2 {
		t.Fatalf("expected 2 review entries (Fresh Person excluded), got %+v", review)
	}
	if review[0].Name != "Stale Person" {
		t.Fatalf("expected Stale Person ranked first by strength, got %+v", review)
	}
	if review[0].ConnectedTo != "Acme" {
		t.Fatalf("expected connected_to Acme, got %q", review[0].ConnectedTo)
	}
	if review[0].MentionCount != 2 {
		t.Fatalf("expected mention_count 2 for twice-upserted entity, got %d", review[0].MentionCount)
	}
	if review[0].Strength < 0.89 {
		t.Fatalf("expected strength ~0.9, got %v", review[0].Strength)
	}
	if review[1].Name != "Weak Contact" {
		t.Fatalf("expected Weak Contact ranked second despite low strength, got %+v", review)
	}
}
