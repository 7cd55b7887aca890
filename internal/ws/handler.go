package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/hub"
	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/pkg/types"
)

// conn is the per-socket state the reader loop keeps.
type conn struct {
	id         string
	enrollment string
	log        *zap.Logger
}

// Events serves the event channel.
func (s *Server) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, s.accept)
		if err != nil {
			s.log.Debug("accept failed", zap.Error(err))
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "bye")
		ws.SetReadLimit(maxMessage)

		c := &conn{id: uuid.NewString()}
		c.log = s.log.With(zap.String(logging.FieldClientID, c.id))
		s.metrics.ConnectionOpened(ChannelEvents)
		defer s.metrics.ConnectionClosed(ChannelEvents)
		c.log.Debug("client connected", zap.String(logging.FieldRemoteAddr, r.RemoteAddr))

		out := make(chan types.ServerMessage, hub.OutboxSize)
		s.hub.Post(hub.Register{ClientID: c.id, Outbox: out})
		defer s.hub.Post(hub.Unregister{ClientID: c.id})

		// cancel runs before Unregister so the writer can tell leaving from being dropped
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		defer s.release(c)

		// Writer goroutine
		go func() {
			for msg := range out {
				if err := writeJSON(ctx, ws, msg); err != nil {
					cancel()
					for range out {
					}
					return
				}
			}
			// the hub closed our outbox: either we left or we fell behind
			if ctx.Err() == nil {
				c.log.Info("client dropped, closing for resync")
				ws.Close(websocket.StatusTryAgainLater, "fell behind, resync")
				cancel()
			}
		}()
		go keepalive(ctx, cancel, ws)

		// Reader loop
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					c.log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				s.send(c, types.ServerMessage{Type: types.EventSocketError, Data: types.ErrorMessage{Message: "malformed message"}})
				continue
			}
			s.dispatch(ctx, c, cm)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, cm types.ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	switch cm.Type {
	case types.IntentRegisterUser:
		s.register(ctx, c, cm)

	case types.IntentRequestTeams:
		view, err := s.auth.State(ctx)
		if err != nil {
			s.reply(c, cm.RequestID, authority.Result{}, err)
			return
		}
		s.send(c, types.ServerMessage{
			Type:    types.EventTeamsUpdated,
			Version: view.Version,
			Data:    authority.TeamsPayload(view.State),
		})
		s.reply(c, cm.RequestID, authority.Result{Version: view.Version}, nil)

	case types.IntentRequestSnapshot:
		docs, version := s.store.Snapshot()
		s.send(c, types.ServerMessage{
			Type:      types.EventSnapshot,
			Version:   version,
			RequestID: cm.RequestID,
			Data:      types.Snapshot{Documents: docs},
		})
		s.reply(c, cm.RequestID, authority.Result{Version: version}, nil)

	default:
		cmd, admin, err := toCommand(cm)
		if errors.Is(err, errUnknownIntent) {
			s.send(c, types.ServerMessage{Type: types.EventSocketError, Data: types.ErrorMessage{Message: err.Error()}})
		}
		if err != nil {
			s.reply(c, cm.RequestID, authority.Result{}, err)
			return
		}
		if !admin && c.enrollment != "" && cmd.EnrollmentID != c.enrollment {
			s.reply(c, cm.RequestID, authority.Result{}, fmt.Errorf("%w: socket is registered as %q", engine.ErrValidation, c.enrollment))
			return
		}
		if admin {
			if s.verifier == nil {
				s.replyAuth(c, cm.RequestID, errors.New("admin intents are disabled"))
				return
			}
			if err := s.verifier.Verify(cm.Token); err != nil {
				s.replyAuth(c, cm.RequestID, err)
				return
			}
		}
		res, err := s.auth.Do(ctx, cmd)
		c.log.Debug("intent handled", zap.String(logging.FieldIntent, cm.Type), zap.Error(err))
		s.reply(c, cm.RequestID, res, err)
	}
}

// register marks the socket's participant online. A socket speaks for one
// participant at a time; registering another id releases the previous one.
func (s *Server) register(ctx context.Context, c *conn, cm types.ClientMessage) {
	var d types.RegisterUser
	if err := decode(cm.Data, &d); err != nil {
		s.reply(c, cm.RequestID, authority.Result{}, err)
		return
	}
	id := d.ID()
	if id == "" {
		s.reply(c, cm.RequestID, authority.Result{}, fmt.Errorf("%w: enrollment id is required", engine.ErrValidation))
		return
	}
	if id == c.enrollment {
		s.reply(c, cm.RequestID, authority.Result{}, nil)
		return
	}
	if c.enrollment != "" {
		s.release(c)
	}
	res, err := s.auth.Do(ctx, engine.Command{Type: engine.CmdParticipantOnline, EnrollmentID: id})
	if err == nil {
		c.enrollment = id
		c.log = c.log.With(zap.String(logging.FieldEnrollment, id))
	}
	s.reply(c, cm.RequestID, res, err)
}

func (s *Server) release(c *conn) {
	if c.enrollment == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()
	if _, err := s.auth.Do(ctx, engine.Command{Type: engine.CmdParticipantOffline, EnrollmentID: c.enrollment}); err != nil && !errors.Is(err, authority.ErrStopped) {
		c.log.Warn("mark offline", zap.Error(err))
	}
	c.enrollment = ""
}

func (s *Server) send(c *conn, msg types.ServerMessage) {
	s.hub.Post(hub.Send{ClientID: c.id, Message: msg})
}

// reply acks one intent. Rejections are also reported as errorMessage so
// clients that do not track request ids still surface them.
func (s *Server) reply(c *conn, requestID string, res authority.Result, err error) {
	if err == nil {
		s.send(c, types.ServerMessage{
			Type:      types.EventAck,
			Version:   res.Version,
			RequestID: requestID,
			Data:      types.Ack{OK: true, TeamID: res.TeamID},
		})
		return
	}
	class := string(engine.ClassOf(err))
	if errors.Is(err, errUnknownIntent) {
		class = string(engine.ClassValidation)
	}
	s.send(c, types.ServerMessage{Type: types.EventErrorMessage, RequestID: requestID, Data: types.ErrorMessage{Message: err.Error()}})
	s.send(c, types.ServerMessage{
		Type:      types.EventAck,
		Version:   res.Version,
		RequestID: requestID,
		Data:      types.Ack{OK: false, Message: err.Error(), Class: class},
	})
}

func (s *Server) replyAuth(c *conn, requestID string, err error) {
	c.log.Info("admin intent rejected", zap.Error(err))
	s.send(c, types.ServerMessage{
		Type:      types.EventAck,
		RequestID: requestID,
		Data:      types.Ack{OK: false, Message: "admin token missing or invalid", Class: types.ClassAuth},
	})
}
