package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"promofeed/internal/observability"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Handler *Handler
	Live    *LiveBroadcaster
	Logger  *log.Logger
}

// NewRouter builds the chi router with the full API surface.
func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("httpapi.NewRouter: nil handler")
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/feed", d.Handler.ComposeFeed)

		r.Post("/track/click", d.Handler.TrackClick)
		r.Post("/track/impressions", d.Handler.TrackImpressions)
		r.Post("/track/event", d.Handler.TrackEvent)

		r.Get("/analytics", d.Handler.GetAnalytics)

		r.Post("/placements", d.Handler.CreatePlacement)
		r.Get("/placements", d.Handler.ListPlacements)
		r.Get("/placements/{id}", d.Handler.GetPlacement)

		if d.Live != nil {
			r.Get("/live", d.Live.Handler())
		}
	})

	return r
}
