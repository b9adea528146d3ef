package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
)

// reservedQueryKeys are window/paging controls, not filter predicate
// terms; parseFilters strips them before handing the remainder to the
// filter compiler.
var reservedQueryKeys = map[string]struct{}{
	"EndAfter":  {},
	"EndBefore": {},
	"days":      {},
}

// parseFilters splits a request's query string into the free-form filter
// map the compiler consumes and the reserved EndAfter/EndBefore/days
// window controls.
func parseFilters(c *gin.Context) (filters map[string]string, start, end *time.Time, err error) {
	filters = make(map[string]string)
	for k, vs := range c.Request.URL.Query() {
		if _, reserved := reservedQueryKeys[k]; reserved || len(vs) == 0 {
			continue
		}
		filters[k] = vs[0]
	}

	if v := c.Query("EndBefore"); v != "" {
		t, perr := parseTimeParam(v)
		if perr != nil {
			return nil, nil, nil, perr
		}
		end = &t
	}
	if v := c.Query("EndAfter"); v != "" {
		t, perr := parseTimeParam(v)
		if perr != nil {
			return nil, nil, nil, perr
		}
		start = &t
	}
	return filters, start, end, nil
}

// parseTimeParam accepts either a unix-seconds integer or an RFC3339
// timestamp, per spec.md section 6.
func parseTimeParam(v string) (time.Time, error) {
	if secs, convErr := strconv.ParseInt(v, 10, 64); convErr == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errs.New(errs.InvalidInput, "api.parseTimeParam", "unparseable time: "+v, err)
	}
	return t.UTC(), nil
}

// clampDays parses the reserved "days" query param into [0, 2]; absent or
// unparseable defaults to 1 (the engine's own 7-day default window).
func clampDays(c *gin.Context) float64 {
	v := c.Query("days")
	if v == "" {
		return 1
	}
	d, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 1
	}
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

func writeErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if kind, ok := errs.KindOf(err); ok {
		switch kind {
		case errs.NotFound:
			status = http.StatusNotFound
		case errs.InvalidInput:
			status = http.StatusBadRequest
		case errs.AlreadyExists:
			status = http.StatusConflict
		case errs.VerificationFailed, errs.Transient:
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func isNotFound(err error) bool {
	kind, ok := errs.KindOf(err)
	return ok && kind == errs.NotFound
}

// getAuction handles GET /api/auction/{uuid}: the combined, merged view.
func (s *Server) getAuction(c *gin.Context) {
	id, err := auction.ParseID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed uuid"})
		return
	}

	a, err := s.Hot.GetCombined(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			if cold, ok, cerr := s.Cold.Lookup(c.Request.Context(), id); cerr == nil && ok {
				c.JSON(http.StatusOK, newAuctionDTO(cold))
				return
			}
		}
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuctionDTO(a))
}

// getAuctionVersions handles POST /api/auction/{uuid}: every stored
// version, unmerged.
func (s *Server) getAuctionVersions(c *gin.Context) {
	id, err := auction.ParseID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed uuid"})
		return
	}

	versions, err := s.Hot.GetByUUID(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuctionDTOs(versions))
}

// recentOverview handles GET /api/auctions/tag/{tag}/recent/overview.
func (s *Server) recentOverview(c *gin.Context) {
	tag := c.Param("tag")
	filters, _, _, err := parseFilters(c)
	if err != nil {
		writeErr(c, err)
		return
	}

	results, names, err := s.Engine.RecentOverview(c.Request.Context(), tag, filters)
	if err != nil {
		writeErr(c, err)
		return
	}

	out := make([]AuctionPreview, len(results))
	for i, r := range results {
		out[i] = newAuctionPreview(r, names)
	}
	c.JSON(http.StatusOK, out)
}

// priceSummary handles GET /api/prices/item/price/{tag}, cache-control
// headers set the way the teacher's read-only RPC endpoints mark their
// responses as safely reverse-proxy-cacheable.
func (s *Server) priceSummary(c *gin.Context) {
	tag := c.Param("tag")
	filters, start, end, err := parseFilters(c)
	if err != nil {
		writeErr(c, err)
		return
	}

	days := clampDays(c)
	if start == nil && end != nil {
		back := end.AddDate(0, 0, -int(days*7))
		start = &back
	}

	records, err := s.Engine.Summary(c.Request.Context(), tag, filters, start, end)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=1800")
	c.JSON(http.StatusOK, newPriceSummary(tag, records))
}

// priceHistory handles GET /api/prices/item/price/{tag}/history.
func (s *Server) priceHistory(c *gin.Context) {
	tag := c.Param("tag")
	filters, start, end, err := parseFilters(c)
	if err != nil {
		writeErr(c, err)
		return
	}

	records, err := s.Engine.Summary(c.Request.Context(), tag, filters, start, end)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=180")
	c.JSON(http.StatusOK, newQueryArchives(tag, records))
}

// restoreAuction handles POST /api/restore/{uuid}: re-insert an archived
// or hot row into the legacy sql collaborator.
func (s *Server) restoreAuction(c *gin.Context) {
	if s.Restorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sql collaborator not configured"})
		return
	}
	id, err := auction.ParseID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed uuid"})
		return
	}

	a, err := s.Hot.GetCombined(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			if cold, ok, cerr := s.Cold.Lookup(c.Request.Context(), id); cerr == nil && ok {
				a = cold
			} else {
				writeErr(c, err)
				return
			}
		} else {
			writeErr(c, err)
			return
		}
	}

	if err := s.Restorer.Restore(c.Request.Context(), a); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// retireAuction handles DELETE /api/restore/{uuid}: remove the row from
// the sql collaborator once the archive confirms it holds a copy.
func (s *Server) retireAuction(c *gin.Context) {
	if s.Restorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sql collaborator not configured"})
		return
	}
	id, err := auction.ParseID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed uuid"})
		return
	}

	if _, ok, cerr := s.Cold.Lookup(c.Request.Context(), id); cerr != nil {
		writeErr(c, cerr)
		return
	} else if !ok {
		if _, herr := s.Hot.GetCombined(c.Request.Context(), id); herr != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no archived or hot copy to confirm against"})
			return
		}
	}

	if err := s.Restorer.Retire(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// setImportOffset handles POST /import/offset?id=N.
func (s *Server) setImportOffset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	if err := s.Offsets.Set(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// listArchivedMonths handles GET /api/archive/{tag}/months.
func (s *Server) listArchivedMonths(c *gin.Context) {
	tag := c.Param("tag")
	months, err := s.Cold.ListMonths(c.Request.Context(), tag)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, months)
}

// getArchivedMonth handles GET /api/archive/{tag}/{year}/{month}.
func (s *Server) getArchivedMonth(c *gin.Context) {
	tag := c.Param("tag")
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed year"})
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed month"})
		return
	}

	records, err := s.Cold.GetMonth(c.Request.Context(), tag, year, month)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuctionDTOs(records))
}

// triggerMigration handles POST /api/archive/migrate: runs one pass of the
// archive migrator synchronously, same as its periodic invocation.
func (s *Server) triggerMigration(c *gin.Context) {
	if err := s.Migrator.RunOnce(c.Request.Context()); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}
