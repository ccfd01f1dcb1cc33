package restapi

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/kgraph/internal/kg"
	"github.com/openclaw/kgraph/internal/semanticmemory"
)

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

// listEntities handles GET /entities?type=&text=&limit=&offset=
func (s *Server) listEntities(c *gin.Context) {
	res, err := s.reader.Query(c.Request.Context(), kg.QueryInput{
		Type:   kg.EntityType(c.Query("type")),
		Text:   c.Query("text"),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, gin.H{"entities": res.Entities, "total": res.Total})
}

// getEntity handles GET /entities/:ref, where :ref is an id or a name.
func (s *Server) getEntity(c *gin.Context) {
	res, err := s.reader.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		if errors.Is(err, kg.ErrEntityNotFound) {
			notFound(c, err.Error())
			return
		}
		internalError(c, err.Error())
		return
	}
	success(c, res)
}

// getNeighbors handles GET /entities/:ref/neighbors?hops=&filter_type=
func (s *Server) getNeighbors(c *gin.Context) {
	ref := c.Param("ref")
	in := kg.NeighborsInput{
		Hops:       queryInt(c, "hops", 0),
		FilterType: kg.EntityType(c.Query("filter_type")),
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		in.EntityID = id
	} else {
		in.Name = ref
	}

	res, err := s.reader.Neighbors(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, kg.ErrEntityNotFound) {
			notFound(c, err.Error())
			return
		}
		internalError(c, err.Error())
		return
	}
	success(c, gin.H{"neighbors": res.Neighbors, "relations": res.Relations})
}

// listStale handles GET /stale?days=&type=
func (s *Server) listStale(c *gin.Context) {
	days := queryInt(c, "days", 0)
	entities, err := s.reader.Stale(c.Request.Context(), kg.StaleInput{
		Days: days,
		Type: kg.EntityType(c.Query("type")),
	})
	if err != nil {
		internalError(c, err.Error())
		return
	}
	if days <= 0 {
		days = kg.DefaultStaleDays
	}
	success(c, gin.H{"entities": entities, "count": len(entities), "days": days})
}

// getStats handles GET /stats
func (s *Server) getStats(c *gin.Context) {
	res, err := s.reader.Stats(c.Request.Context())
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, res)
}

// searchMemories handles GET /memories/search?q=&k=&type=&session_id=&min_score=
func (s *Server) searchMemories(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "missing required query param: q")
		return
	}
	hits, err := s.memory.Search(c.Request.Context(), semanticmemory.SearchInput{
		Query:      query,
		K:          queryInt(c, "k", 0),
		MemoryType: c.Query("type"),
		SessionID:  c.Query("session_id"),
		MinScore:   queryFloat(c, "min_score", 0),
	})
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, gin.H{"results": hits, "count": len(hits)})
}

// getNudges handles GET /nudges — every rule's output, priority-sorted
// and truncated to the daily cap, same contract as the check_all
// dispatcher command.
func (s *Server) getNudges(c *gin.Context) {
	nudges, err := s.nudge.CheckAll(c.Request.Context())
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, gin.H{"nudges": nudges, "count": len(nudges)})
}
