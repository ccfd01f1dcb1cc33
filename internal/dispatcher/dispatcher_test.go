package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/nudge"
	"github.com/openclaw/kgraph/internal/testutil"
)

func newTestKGDispatcher(t *testing.T) (*Dispatcher, *bytes.Buffer) {
	t.Helper()
	pool := testutil.NewKGPool(t)

	out := &bytes.Buffer{}
	d := New("kg-bridge-test", strings.NewReader(""), out)
	RegisterKG(d, kg.NewWriter(pool), kg.NewReader(pool))
	return d, out
}

func TestDispatcherUpsertEntityRoundTrip(t *testing.T) {
	d, _ := newTestKGDispatcher(t)
	ctx := context.Background()

	resp := d.HandleOnce(ctx, `{"command":"upsert_entity","args":{"name":"Priya Raman","type":"person"}}`)
	if resp["success"] != true {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp["action"] != "created" {
		t.Fatalf("expected action=created, got %+v", resp)
	}

	resp2 := d.HandleOnce(ctx, `{"command":"upsert_entity","args":{"name":"PRIYA raman","type":"person"}}`)
	if resp2["action"] != "updated" {
		t.Fatalf("expected action=updated on case-insensitive re-upsert, got %+v", resp2)
	}
}

func TestDispatcherUnknownCommandReturnsError(t *testing.T) {
	d, _ := newTestKGDispatcher(t)
	resp := d.HandleOnce(context.Background(), `{"command":"nonexistent","args":{}}`)
	if resp["success"] != false {
		t.Fatalf("expected success=false for unknown command, got %+v", resp)
	}
	if resp["error"] == nil {
		t.Fatal("expected an error message")
	}
}

func TestDispatcherMalformedJSONReturnsErrorNotPanic(t *testing.T) {
	d, _ := newTestKGDispatcher(t)
	resp := d.HandleOnce(context.Background(), `not json at all`)
	if resp["success"] != false {
		t.Fatalf("expected success=false for malformed input, got %+v", resp)
	}
}

func TestDispatcherGetMissingEntityReturnsError(t *testing.T) {
	d, _ := newTestKGDispatcher(t)
	resp := d.HandleOnce(context.Background(), `{"command":"get","args":{"name":"Nobody"}}`)
	if resp["success"] != false {
		t.Fatalf("expected success=false for missing entity, got %+v", resp)
	}
}

func TestDispatcherDeleteEntityByName(t *testing.T) {
	d, _ := newTestKGDispatcher(t)
	ctx := context.Background()

	d.HandleOnce(ctx, `{"command":"upsert_entity","args":{"name":"Temp Entity","type":"person"}}`)
	resp := d.HandleOnce(ctx, `{"command":"delete_entity","args":{"name":"Temp Entity"}}`)
	if resp["success"] != true {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp["deleted"] != "Temp Entity" {
		t.Fatalf("expected deleted=Temp Entity, got %+v", resp)
	}
}

func TestDispatcherRunProcessesMultipleLines(t *testing.T) {
	pool := testutil.NewKGPool(t)
	ctx := context.Background()

	input := strings.NewReader(
		`{"command":"upsert_entity","args":{"name":"Acme","type":"org"}}` + "\n" +
			`{"command":"stats","args":{}}` + "\n",
	)
	out := &bytes.Buffer{}
	d := New("kg-bridge-test", input, out)
	RegisterKG(d, kg.NewWriter(pool), kg.NewReader(pool))

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines, got %d: %q", len(lines), out.String())
	}
	var stats map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &stats); err != nil {
		t.Fatalf("unmarshal stats response: %v", err)
	}
	if stats["total_entities"].(float64) != 1 {
		t.Fatalf("expected total_entities=1, got %+v", stats)
	}
}

func newTestNudgeDispatcher(t *testing.T) (*Dispatcher, *kg.Writer) {
	t.Helper()
	pool := testutil.NewKGPool(t)

	cfg := nudge.DefaultConfig()
	cfg.OwnerName = "Self Person"
	out := &bytes.Buffer{}
	d := New("nudge-bridge-test", strings.NewReader(""), out)
	RegisterNudge(d, nudge.NewEngine(pool, cfg))
	return d, kg.NewWriter(pool)
}

func TestDispatcherCheckAllReturnsNudgeList(t *testing.T) {
	d, w := newTestNudgeDispatcher(t)
	ctx := context.Background()
	w.UpsertEntity(ctx, kg.UpsertEntityInput{Name: "Friend", Type: kg.TypePerson})

	resp := d.HandleOnce(ctx, `{"command":"check_all","args":{}}`)
	if resp["success"] != true {
		t.Fatalf("expected success, got %+v", resp)
	}
	if _, ok := resp["nudges"]; !ok {
		t.Fatalf("expected nudges field, got %+v", resp)
	}
}
