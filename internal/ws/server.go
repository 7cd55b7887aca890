// Package ws serves the two realtime channels: /ws carries intents in and
// events out, /feed streams snapshot documents.
package ws

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/hub"
	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/internal/store"
)

const (
	writeTimeout  = 3 * time.Second
	pingInterval  = 20 * time.Second
	intentTimeout = 5 * time.Second
	maxMessage    = 64 << 10
)

// Channel names used for metrics and logs.
const (
	ChannelEvents = "events"
	ChannelFeed   = "feed"
)

// Authority is the part of the single writer the sockets need.
type Authority interface {
	Do(ctx context.Context, cmd engine.Command) (authority.Result, error)
	State(ctx context.Context) (authority.View, error)
}

// Verifier checks admin bearer tokens.
type Verifier interface {
	Verify(token string) error
}

type Options struct {
	Hub       *hub.Hub
	Authority Authority
	Store     store.Store
	Verifier  Verifier
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	// AllowedOrigins are browser origins such as "https://auction.example";
	// an empty list allows same-host requests only.
	AllowedOrigins []string
}

type Server struct {
	hub      *hub.Hub
	auth     Authority
	store    store.Store
	verifier Verifier
	log      *zap.Logger
	metrics  *metrics.Recorder
	accept   *websocket.AcceptOptions
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		hub:      opts.Hub,
		auth:     opts.Authority,
		store:    opts.Store,
		verifier: opts.Verifier,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		accept:   &websocket.AcceptOptions{OriginPatterns: originPatterns(opts.AllowedOrigins)},
	}
}

// originPatterns turns origins into the host patterns websocket.Accept matches.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// keepalive pings until ctx ends or a ping fails, then cancels the connection.
func keepalive(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				cancel()
				return
			}
		}
	}
}
