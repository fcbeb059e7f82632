package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/catalog-sync/api/handler"
)

type Handlers struct {
	Products   *apiHandler.RecordHandler
	Categories *apiHandler.RecordHandler
	Snapshot   *apiHandler.SnapshotHandler
	Health     *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	mountRecords(r, "/owners/{owner_id}/products", handlers.Products, authMiddleware)
	mountRecords(r, "/owners/{owner_id}/categories", handlers.Categories, authMiddleware)

	r.GET("/owners/{owner_id}/catalog", authMiddleware(handlers.Snapshot.Get))

	return r
}

func mountRecords(r *router.Router, prefix string, h *apiHandler.RecordHandler, auth func(fasthttp.RequestHandler) fasthttp.RequestHandler) {
	r.GET(prefix, auth(h.List))
	r.POST(prefix, auth(h.Create))
	r.GET(prefix+"/{id}", auth(h.Get))
	r.PUT(prefix+"/{id}", auth(h.Update))
	r.DELETE(prefix+"/{id}", auth(h.Delete))
}
