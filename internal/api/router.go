package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyblock-archive/auctions/internal/coldstore"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/metrics"
	"github.com/skyblock-archive/auctions/internal/migrator"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/offset"
	"github.com/skyblock-archive/auctions/internal/query"
	"github.com/skyblock-archive/auctions/internal/sqlsource"
)

// Server bundles every collaborator the HTTP surface needs and builds the
// gin engine, the way the teacher's cmd/rpcdaemon wires its handler struct
// directly against concrete collaborators rather than a framework-specific
// container.
type Server struct {
	Engine   *query.Engine
	Hot      hotstore.Store
	Cold     *coldstore.Store
	Migrator *migrator.Migrator
	Offsets  *offset.Tracker
	Restorer sqlsource.Restorer

	log obslog.Logger
}

func NewServer(engine *query.Engine, hot hotstore.Store, cold *coldstore.Store, mig *migrator.Migrator, offsets *offset.Tracker, restorer sqlsource.Restorer) *Server {
	return &Server{
		Engine: engine, Hot: hot, Cold: cold, Migrator: mig, Offsets: offsets, Restorer: restorer,
		log: obslog.New("component", "api.server"),
	}
}

// Router builds the gin engine with every route from spec.md section 6.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.GET("/api/auction/:uuid", s.getAuction)
	r.POST("/api/auction/:uuid", s.getAuctionVersions)
	r.GET("/api/auctions/tag/:tag/recent/overview", s.recentOverview)
	r.GET("/api/prices/item/price/:tag", s.priceSummary)
	r.GET("/api/prices/item/price/:tag/history", s.priceHistory)
	r.POST("/api/restore/:uuid", s.restoreAuction)
	r.DELETE("/api/restore/:uuid", s.retireAuction)
	r.POST("/import/offset", s.setImportOffset)
	r.GET("/api/archive/:tag/months", s.listArchivedMonths)
	r.GET("/api/archive/:tag/:year/:month", s.getArchivedMonth)
	r.POST("/api/archive/migrate", s.triggerMigration)

	return r
}

func requestLogger(log obslog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}
