package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/technobid/auction-backend/internal/auth"
	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/clock"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/internal/store"
	"github.com/technobid/auction-backend/pkg/types"
)

type env struct {
	srv       *httptest.Server
	authority *authority.Authority
	metrics   *metrics.Recorder
	token     string
}

func newEnv(t *testing.T, rules engine.Rules) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := zaptest.NewLogger(t)
	rec := metrics.NewRecorder()
	st := store.NewMemory()

	participants := []types.Participant{{EnrollmentID: "p1", Name: "Asha"}, {EnrollmentID: "p2", Name: "Bilal"}}
	catalogue := []types.CatalogueEntry{
		{ID: "b1", Name: "Opener", Phase: types.PhaseBatters, BasePrice: 1_000_000, ImportanceScore: 90},
		{ID: "b2", Name: "Anchor", Phase: types.PhaseBatters, BasePrice: 800_000, ImportanceScore: 70},
		{ID: "w1", Name: "Quick", Phase: types.PhaseBowlers, BasePrice: 900_000, ImportanceScore: 80},
	}
	a := authority.New(ctx, engine.NewState(rules, participants, catalogue), authority.Options{
		Store:   st,
		Clock:   clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)),
		Logger:  log,
		Metrics: rec,
	})
	authn, err := auth.New(auth.Options{Username: "admin", Password: "123", Secret: "test"})
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRoutes(Deps{
		Authority:      a,
		Store:          st,
		Auth:           authn,
		Metrics:        rec,
		Logger:         log,
		RequestTimeout: 2 * time.Second,
		AllowedOrigins: []string{"http://localhost:5173"},
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-a.Done()
	})

	e := &env{srv: srv, authority: a, metrics: rec}
	var login types.LoginResponse
	status := e.call(t, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "admin", Password: "123"}, &login)
	require.Equal(t, http.StatusOK, status)
	e.token = login.Token
	return e
}

// call sends body as JSON with the admin token and decodes the response into out.
func (e *env) call(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *env) do(t *testing.T, cmd engine.Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := e.authority.Do(ctx, cmd)
	require.NoError(t, err)
}

// teams creates A{p1} and B{p2} in the open lobby.
func (e *env) teams(t *testing.T) {
	e.do(t, engine.Command{Type: engine.CmdCreateTeam, TeamID: "A", Name: "Alpha", MaxSize: 2, EnrollmentID: "p1"})
	e.do(t, engine.Command{Type: engine.CmdCreateTeam, TeamID: "B", Name: "Bravo", MaxSize: 2, EnrollmentID: "p2"})
}

func TestLogin(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())
	e.token = ""

	var msg types.MessageResponse
	status := e.call(t, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "admin", Password: "nope"}, &msg)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, types.ClassAuth, msg.Class)

	status = e.call(t, http.MethodPost, "/api/admin/pause-auction", nil, &msg)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuctionFlow(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())
	e.teams(t)

	steps := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"start before lock", http.MethodPost, "/api/admin/start-auction", nil, http.StatusConflict},
		{"lock", http.MethodPost, "/api/admin/lock-lobby", nil, http.StatusOK},
		{"reopen", http.MethodPost, "/api/admin/reopen-lobby", nil, http.StatusOK},
		{"lock again", http.MethodPost, "/api/admin/lock-lobby", nil, http.StatusOK},
		{"start", http.MethodPost, "/api/admin/start-auction", nil, http.StatusOK},
		{"select missing", http.MethodPost, "/api/admin/select-player", types.SelectItemRequest{PlayerID: "zz"}, http.StatusNotFound},
		{"select other phase", http.MethodPost, "/api/admin/select-player", types.SelectItemRequest{PlayerID: "w1"}, http.StatusConflict},
		{"select without id", http.MethodPost, "/api/admin/select-player", struct{}{}, http.StatusBadRequest},
		{"select", http.MethodPost, "/api/admin/select-player", types.SelectItemRequest{PlayerID: "b1"}, http.StatusOK},
		{"bid A", http.MethodPost, "/api/auction/bid", types.BidRequest{TeamID: "A"}, http.StatusOK},
		{"bid A twice", http.MethodPost, "/api/auction/bid", types.BidRequest{TeamID: "A"}, http.StatusConflict},
		{"bid unknown team", http.MethodPost, "/api/auction/bid", types.BidRequest{TeamID: "Z"}, http.StatusNotFound},
		{"change phase while active", http.MethodPost, "/api/admin/change-phase", types.ChangePhaseRequest{Phase: "BOWLERS"}, http.StatusConflict},
		{"unknown phase", http.MethodPost, "/api/admin/change-phase", types.ChangePhaseRequest{Phase: "FIELDERS"}, http.StatusBadRequest},
		{"pause", http.MethodPost, "/api/admin/pause-auction", nil, http.StatusOK},
		{"bid while paused", http.MethodPost, "/api/auction/bid", types.BidRequest{TeamID: "B"}, http.StatusConflict},
		{"resume", http.MethodPost, "/api/admin/resume-auction", nil, http.StatusOK},
		{"end unconfirmed", http.MethodPost, "/api/admin/end-auction", nil, http.StatusBadRequest},
		{"end", http.MethodPost, "/api/admin/end-auction", types.ConfirmRequest{Confirm: true}, http.StatusOK},
	}
	var last uint64
	for _, step := range steps {
		var msg types.MessageResponse
		status := e.call(t, step.method, step.path, step.body, &msg)
		require.Equal(t, step.status, status, "%s: %s", step.name, msg.Message)
		if status == http.StatusOK {
			assert.Greater(t, msg.Version, last, step.name)
			last = msg.Version
		} else {
			assert.NotEmpty(t, msg.Class, step.name)
		}
	}

	var results types.ResultsResponse
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/admin/results", nil, &results))
	require.Len(t, results.Standings, 2)
	assert.Equal(t, "A", results.Standings[0].Team.ID)
	assert.Equal(t, 90, results.Standings[0].TotalScore)
	assert.Equal(t, int64(1_200_000), results.Standings[0].Spent)

	var msg types.MessageResponse
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/admin/restart-auction", types.ConfirmRequest{Confirm: true}, &msg))
	v, err := e.authority.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.LobbyLocked, v.State.Lobby)
}

func TestBid_InsufficientPurse(t *testing.T) {
	rules := engine.DefaultRules()
	rules.InitialPurse = 1_100_000
	e := newEnv(t, rules)
	e.teams(t)
	e.do(t, engine.Command{Type: engine.CmdLockLobby})
	e.do(t, engine.Command{Type: engine.CmdStartAuction})
	e.do(t, engine.Command{Type: engine.CmdSelectItem, ItemID: "b1"})

	var msg types.MessageResponse
	status := e.call(t, http.MethodPost, "/api/auction/bid", types.BidRequest{TeamID: "A"}, &msg)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(engine.ClassState), msg.Class)
	assert.Contains(t, msg.Message, engine.ErrInsufficientPurse.Error())
}

func TestSelectNext(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())
	e.teams(t)
	e.do(t, engine.Command{Type: engine.CmdLockLobby})
	e.do(t, engine.Command{Type: engine.CmdStartAuction})

	var msg types.MessageResponse
	require.Equal(t, http.StatusOK, e.call(t, http.MethodPost, "/api/admin/select-next", nil, &msg))
	v, err := e.authority.State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, v.State.Auction.CurrentItem)
	assert.Equal(t, "b1", v.State.Auction.CurrentItem.ID)
}

func TestPlayers(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())

	var players types.PlayersResponse
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/admin/players", nil, &players))
	assert.Len(t, players.Players, 3)

	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/admin/players?phase=batters", nil, &players))
	require.Len(t, players.Players, 2)
	assert.Equal(t, "b1", players.Players[0].ID)

	var msg types.MessageResponse
	assert.Equal(t, http.StatusBadRequest, e.call(t, http.MethodGet, "/api/admin/players?phase=nope", nil, &msg))
}

func TestStateAndHealth(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())
	e.token = ""

	var env types.Envelope
	require.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/api/state", nil, &env))
	assert.Equal(t, types.EventSnapshot, env.Type)
	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.NotEmpty(t, snap.Documents)

	var msg types.MessageResponse
	assert.Equal(t, http.StatusOK, e.call(t, http.MethodGet, "/healthz", nil, &msg))
	assert.Positive(t, e.metrics.Snapshot().HTTPRequests)
}

func TestCORS(t *testing.T) {
	e := newEnv(t, engine.DefaultRules())

	for origin, allowed := range map[string]bool{"http://localhost:5173": true, "http://evil.test": false} {
		t.Run(origin, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/auction/bid", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			if allowed {
				assert.Equal(t, http.StatusNoContent, resp.StatusCode)
				assert.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{engine.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", engine.ErrValidation, engine.ErrLobbyClosed), http.StatusBadRequest},
		{engine.ErrCapacity, http.StatusConflict},
		{engine.ErrTeamNotFound, http.StatusNotFound},
		{engine.ErrInvalidTransition, http.StatusConflict},
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{authority.ErrStopped, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, _ := statusFor(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}
