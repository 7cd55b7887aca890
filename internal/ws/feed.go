package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/pkg/types"
)

// Feed serves the snapshot feed: the full current document set, then every
// change. The feed is closed when the client falls behind; it then reconnects
// and starts from a fresh snapshot.
func (s *Server) Feed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, s.accept)
		if err != nil {
			s.log.Debug("accept failed", zap.Error(err))
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "bye")

		log := s.log.With(zap.String(logging.FieldClientID, uuid.NewString()))
		s.metrics.ConnectionOpened(ChannelFeed)
		defer s.metrics.ConnectionClosed(ChannelFeed)

		// the feed is write-only; CloseRead handles control frames and
		// cancels ctx when the peer goes away
		ctx, cancel := context.WithCancel(ws.CloseRead(r.Context()))
		defer cancel()
		go keepalive(ctx, cancel, ws)

		docs, changes, unsubscribe := s.store.SubscribeSnapshot("")
		defer unsubscribe()

		var version uint64
		for _, d := range docs {
			version = max(version, d.Version)
		}
		snap := types.ServerMessage{Type: types.EventSnapshot, Version: version, Data: types.Snapshot{Documents: docs}}
		if err := writeJSON(ctx, ws, snap); err != nil {
			log.Debug("write snapshot", zap.Error(err))
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-changes:
				if !ok {
					log.Info("feed subscriber dropped, closing for resync")
					s.metrics.RecordDropped(ChannelFeed)
					ws.Close(websocket.StatusTryAgainLater, "fell behind, resync")
					return
				}
				msg := types.ServerMessage{Type: types.EventDocument, Version: d.Version, Data: d}
				if err := writeJSON(ctx, ws, msg); err != nil {
					log.Debug("write document", zap.Error(err))
					return
				}
			}
		}
	}
}
