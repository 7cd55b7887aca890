// Package httpapi is the HTTP control plane: admin commands, the bid
// endpoint, read-only state and the realtime socket mounts.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/auth"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/internal/store"
)

type Deps struct {
	Authority Authority
	Store     store.Store
	Auth      *auth.Authenticator
	// Events and Feed are the websocket handlers for /ws and /feed.
	Events         http.Handler
	Feed           http.Handler
	MetricsHandler http.Handler
	Metrics        *metrics.Recorder
	Logger         *zap.Logger
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := NewHandlers(d.Authority, d.Store, d.Auth, d.Logger.Named("http"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(d.Logger.Named("http"), d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors(d.AllowedOrigins))

	// Public routes
	r.Get("/healthz", h.Healthz)
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}
	if d.Events != nil {
		r.Handle("/ws", d.Events)
	}
	if d.Feed != nil {
		r.Handle("/feed", d.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}
		r.Get("/state", h.State)
		r.Post("/auction/bid", h.Command("bid placed", submitBid))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(d.Auth.Middleware(h.rejectAuth))

				r.Get("/players", h.Players)
				r.Get("/results", h.Results)

				r.Post("/start-auction", h.Command("auction started", simple(engine.CmdStartAuction)))
				r.Post("/pause-auction", h.Command("auction paused", simple(engine.CmdPause)))
				r.Post("/resume-auction", h.Command("auction resumed", simple(engine.CmdResume)))
				r.Post("/end-auction", h.Command("auction ended", confirmed(engine.CmdEndAuction)))
				r.Post("/restart-auction", h.Command("auction restarted", confirmed(engine.CmdRestart)))

				r.Post("/select-player", h.Command("player selected", selectItem))
				r.Post("/select-next", h.Command("next player selected", simple(engine.CmdSelectNext)))
				r.Post("/change-phase", h.Command("phase changed", changePhase))

				r.Post("/lock-lobby", h.Command("lobby locked", simple(engine.CmdLockLobby)))
				r.Post("/reopen-lobby", h.Command("lobby reopened", simple(engine.CmdReopenLobby)))
			})
		})
	})
	return r
}
