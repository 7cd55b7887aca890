package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/auth"
	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/internal/store"
	"github.com/technobid/auction-backend/pkg/types"
)

// Authority is the single writer as the handlers see it.
type Authority interface {
	Do(ctx context.Context, cmd engine.Command) (authority.Result, error)
	State(ctx context.Context) (authority.View, error)
}

type Handlers struct {
	auth  Authority
	store store.Store
	authn *auth.Authenticator
	log   *zap.Logger
}

func NewHandlers(a Authority, st store.Store, authn *auth.Authenticator, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{auth: a, store: st, authn: authn, log: log}
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.authn.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, types.MessageResponse{Message: err.Error(), Class: types.ClassAuth}, h.log)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{Token: token}, h.log)
}

// Players lists the catalogue, optionally filtered by ?phase=.
func (h *Handlers) Players(w http.ResponseWriter, r *http.Request) {
	view, err := h.auth.State(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	players := slices.Clone(view.State.Catalogue)
	if raw := r.URL.Query().Get("phase"); raw != "" {
		phase, ok := types.ParsePhase(raw)
		if !ok {
			h.writeError(w, r, fmt.Errorf("%w: unknown phase %q", engine.ErrValidation, raw))
			return
		}
		players = view.State.Items(phase)
	}
	if players == nil {
		players = []types.CatalogueEntry{}
	}
	writeJSON(w, http.StatusOK, types.PlayersResponse{Players: players}, h.log)
}

func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	view, err := h.auth.State(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ResultsResponse{Standings: engine.Standings(view.State)}, h.log)
}

// State returns the current document snapshot for clients that poll.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	docs, version := h.store.Snapshot()
	writeJSON(w, http.StatusOK, types.ServerMessage{
		Type:    types.EventSnapshot,
		Version: version,
		Data:    types.Snapshot{Documents: docs},
	}, h.log)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.State(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "ok"}, h.log)
}

// commandFunc builds the engine command for a request.
type commandFunc func(r *http.Request) (engine.Command, error)

// Command applies the command built from the request and answers with message.
func (h *Handlers) Command(message string, build commandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := build(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		res, err := h.auth.Do(r.Context(), cmd)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: message, Version: res.Version}, h.log)
	}
}

func simple(t engine.CommandType) commandFunc {
	return func(*http.Request) (engine.Command, error) {
		return engine.Command{Type: t}, nil
	}
}

func confirmed(t engine.CommandType) commandFunc {
	return func(r *http.Request) (engine.Command, error) {
		var req types.ConfirmRequest
		if err := decodeBody(r, &req); err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: t, Confirm: req.Confirm}, nil
	}
}

func selectItem(r *http.Request) (engine.Command, error) {
	var req types.SelectItemRequest
	if err := decodeBody(r, &req); err != nil {
		return engine.Command{}, err
	}
	if req.PlayerID == "" {
		return engine.Command{}, fmt.Errorf("%w: playerId is required", engine.ErrValidation)
	}
	return engine.Command{Type: engine.CmdSelectItem, ItemID: req.PlayerID}, nil
}

func changePhase(r *http.Request) (engine.Command, error) {
	var req types.ChangePhaseRequest
	if err := decodeBody(r, &req); err != nil {
		return engine.Command{}, err
	}
	phase, ok := types.ParsePhase(req.Phase)
	if !ok {
		return engine.Command{}, fmt.Errorf("%w: unknown phase %q", engine.ErrValidation, req.Phase)
	}
	return engine.Command{Type: engine.CmdChangePhase, Phase: phase}, nil
}

func submitBid(r *http.Request) (engine.Command, error) {
	var req types.BidRequest
	if err := decodeBody(r, &req); err != nil {
		return engine.Command{}, err
	}
	if req.TeamID == "" {
		return engine.Command{}, fmt.Errorf("%w: teamId is required", engine.ErrValidation)
	}
	return engine.Command{Type: engine.CmdSubmitBid, TeamID: req.TeamID}, nil
}

// rejectAuth is the admin middleware's error writer.
func (h *Handlers) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Info("admin request rejected", zap.String(logging.FieldPath, r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusUnauthorized, types.MessageResponse{Message: "admin token missing or invalid", Class: types.ClassAuth}, h.log)
}
