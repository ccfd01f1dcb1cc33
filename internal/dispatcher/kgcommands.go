package dispatcher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/openclaw/kgraph/internal/kg"
)

// RegisterKG wires the knowledge graph bridge command table into d,
// mirroring kg-bridge.py's dispatch: init, upsert_entity, upsert_relation,
// query, get, stats, stale, neighbors, delete_entity.
func RegisterKG(d *Dispatcher, w *kg.Writer, r *kg.Reader) {
	d.Register("init", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	d.Register("upsert_entity", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		name, ok := argString(args, "name")
		if !ok || name == "" {
			return nil, fmt.Errorf("missing required arg: name")
		}
		typ, ok := argString(args, "type")
		if !ok || typ == "" {
			return nil, fmt.Errorf("missing required arg: type")
		}
		var confidence *float64
		if f, ok := argFloat(args, "confidence"); ok {
			confidence = &f
		}
		notes, _ := argString(args, "notes")

		res, err := w.UpsertEntity(ctx, kg.UpsertEntityInput{
			Name:       name,
			Type:       kg.EntityType(typ),
			Metadata:   kg.Metadata(argMetadata(args, "metadata")),
			Notes:      notes,
			Confidence: confidence,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id": res.ID, "action": res.Action, "name": res.Name, "type": res.Type,
		}, nil
	})

	d.Register("upsert_relation", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		source, ok := args["source"]
		if !ok {
			return nil, fmt.Errorf("missing required arg: source")
		}
		target, ok := args["target"]
		if !ok {
			return nil, fmt.Errorf("missing required arg: target")
		}
		typ, ok := argString(args, "type")
		if !ok || typ == "" {
			return nil, fmt.Errorf("missing required arg: type")
		}
		var strength *float64
		if f, ok := argFloat(args, "strength"); ok {
			strength = &f
		}
		bidirectional, _ := argBool(args, "bidirectional")

		res, err := w.UpsertRelation(ctx, kg.UpsertRelationInput{
			Source:        source,
			Target:        target,
			Type:          typ,
			Strength:      strength,
			Metadata:      kg.Metadata(argMetadata(args, "metadata")),
			Bidirectional: bidirectional,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id": res.ID, "source_id": res.SourceID, "target_id": res.TargetID, "type": res.Type,
		}, nil
	})

	d.Register("query", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		typ, _ := argString(args, "type")
		text, _ := argString(args, "text")
		limit, _ := argInt(args, "limit")
		offset, _ := argInt(args, "offset")

		res, err := r.Query(ctx, kg.QueryInput{
			Type:     kg.EntityType(typ),
			Text:     text,
			Metadata: argMetadata(args, "metadata"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"entities": res.Entities, "total": res.Total}, nil
	})

	d.Register("get", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		ref, err := refString(args)
		if err != nil {
			return nil, err
		}
		res, err := r.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		entity := map[string]any{
			"id": res.Entity.ID, "name": res.Entity.Name, "type": res.Entity.Type,
			"metadata": res.Entity.Metadata, "notes": res.Entity.Notes, "confidence": res.Entity.Confidence,
			"mention_count": res.Entity.MentionCount, "first_seen": res.Entity.FirstSeen,
			"last_seen": res.Entity.LastSeen, "last_mentioned": res.Entity.LastMentioned,
			"relationships": res.Relations,
		}
		return map[string]any{"entity": entity}, nil
	})

	d.Register("stats", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		res, err := r.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"total_entities": res.TotalEntities, "total_relations": res.TotalRelations,
			"by_type": res.ByType, "most_connected": res.MostConnected, "most_stale": res.MostStale,
		}, nil
	})

	d.Register("stale", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		days, _ := argInt(args, "days")
		typ, _ := argString(args, "type")
		entities, err := r.Stale(ctx, kg.StaleInput{Days: days, Type: kg.EntityType(typ)})
		if err != nil {
			return nil, err
		}
		stale := kg.DefaultStaleDays
		if days > 0 {
			stale = days
		}
		return map[string]any{"entities": entities, "count": len(entities), "days": stale}, nil
	})

	d.Register("neighbors", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		entityID, name, err := refParts(args)
		if err != nil {
			return nil, err
		}
		hops, _ := argInt(args, "hops")
		filterType, _ := argString(args, "filter_type")

		res, err := r.Neighbors(ctx, kg.NeighborsInput{
			EntityID: entityID, Name: name, Hops: hops, FilterType: kg.EntityType(filterType),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"neighbors": res.Neighbors, "relations": res.Relations}, nil
	})

	d.Register("delete_entity", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		ref, err := refString(args)
		if err != nil {
			return nil, err
		}
		entity, err := r.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := w.DeleteEntity(ctx, entity.Entity.ID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": entity.Entity.Name}, nil
	})
}

// refString formats an "id" or "name" arg into the single string form
// Reader.Get expects.
func refString(args map[string]any) (string, error) {
	if f, ok := argFloat(args, "id"); ok {
		return strconv.FormatInt(int64(f), 10), nil
	}
	if s, ok := argString(args, "id"); ok && s != "" {
		return s, nil
	}
	if s, ok := argString(args, "name"); ok && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("missing required arg: id or name")
}

// refParts splits an "id" or "name" arg into Neighbors' separate
// EntityID/Name fields.
func refParts(args map[string]any) (int64, string, error) {
	if f, ok := argFloat(args, "id"); ok {
		return int64(f), "", nil
	}
	if s, ok := argString(args, "id"); ok && s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id, "", nil
		}
		return 0, s, nil
	}
	if s, ok := argString(args, "name"); ok && s != "" {
		return 0, s, nil
	}
	return 0, "", fmt.Errorf("missing required arg: id or name")
}
