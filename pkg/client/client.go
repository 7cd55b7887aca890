package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/technobid/auction-backend/pkg/nav"
	"github.com/technobid/auction-backend/pkg/types"
)

// ErrDisconnected is returned for intents sent while no event channel is up
// or whose connection dropped before the ack arrived. Callers retry.
var ErrDisconnected = errors.New("client disconnected")

const maxFrame = 16 << 20

// RejectedError is a negative ack.
type RejectedError struct {
	Class   string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Class, e.Message)
}

type Options struct {
	// BaseURL is the server's http(s) address; the socket URLs derive from it.
	BaseURL    string
	Session    Session
	Logger     *zap.Logger
	HTTPClient *http.Client
	// NewBackOff builds the reconnect policy. The default is exponential
	// from 250ms to 10s without a deadline.
	NewBackOff func() backoff.BackOff
}

type Client struct {
	opts Options
	view *View
	log  *zap.Logger

	mu       sync.Mutex
	session  Session
	conn     *websocket.Conn
	pending  map[string]chan types.Ack
	connects int
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &Client{
		opts:    opts,
		view:    NewView(),
		log:     opts.Logger,
		session: opts.Session,
		pending: map[string]chan types.Ack{},
	}
}

func (c *Client) View() *View { return c.view }

func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Route is the screen the current session belongs on.
func (c *Client) Route() nav.Route { return c.Session().Route(c.view) }

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connects counts successful connections, reconnects included.
func (c *Client) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Run keeps both feeds connected until ctx ends, reconnecting with backoff.
// Every reconnect discards the cached view and starts from a fresh snapshot.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.WithContext(c.opts.NewBackOff(), ctx)
	for {
		connected, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		c.log.Info("realtime connection lost, retrying", zap.Duration("in", wait), zap.Error(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, _, err := websocket.Dial(ctx, c.socketURL("/ws"), nil)
	if err != nil {
		return false, fmt.Errorf("%w: dial events: %v", ErrDisconnected, err)
	}
	defer events.Close(websocket.StatusNormalClosure, "bye")
	feed, _, err := websocket.Dial(ctx, c.socketURL("/feed"), nil)
	if err != nil {
		return false, fmt.Errorf("%w: dial feed: %v", ErrDisconnected, err)
	}
	defer feed.Close(websocket.StatusNormalClosure, "bye")

	// snapshots outgrow the default 32KiB frame limit
	events.SetReadLimit(maxFrame)
	feed.SetReadLimit(maxFrame)

	c.view.Reset()
	c.attach(events)
	defer c.detach()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readFeed(gctx, feed) })
	g.Go(func() error { return c.readEvents(gctx, events) })
	g.Go(func() error {
		c.resync(gctx)
		return nil
	})
	err = g.Wait()
	return true, fmt.Errorf("%w: %v", ErrDisconnected, err)
}

// resync announces the session and asks for the event-channel state.
func (c *Client) resync(ctx context.Context) {
	s := c.Session()
	if s.Role == nav.RoleParticipant && s.EnrollmentID != "" {
		if _, err := c.Send(ctx, types.IntentRegisterUser, types.RegisterUser{EnrollmentID: s.EnrollmentID}); err != nil {
			c.log.Warn("register after connect", zap.Error(err))
		}
	}
	if _, err := c.Send(ctx, types.IntentRequestTeams, nil); err != nil {
		c.log.Debug("request teams after connect", zap.Error(err))
	}
}

func (c *Client) readFeed(ctx context.Context, conn *websocket.Conn) error {
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			return err
		}
		switch env.Type {
		case types.EventSnapshot:
			if err := c.view.ApplyEvent(env); err != nil {
				c.log.Warn("bad snapshot", zap.Error(err))
			}
		case types.EventDocument:
			var d types.Document
			if err := decodeData(env, &d); err != nil {
				c.log.Warn("bad document", zap.Error(err))
				continue
			}
			c.view.Apply(d)
		}
	}
}

func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn) error {
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			return err
		}
		switch env.Type {
		case types.EventAck:
			var ack types.Ack
			if err := decodeData(env, &ack); err != nil {
				c.log.Warn("bad ack", zap.Error(err))
				continue
			}
			c.deliver(env.RequestID, ack)
		case types.EventSocketError, types.EventErrorMessage:
			c.log.Debug("server reported an error", zap.String("type", env.Type), zap.ByteString("data", env.Data))
		default:
			if err := c.view.ApplyEvent(env); err != nil {
				c.log.Warn("bad event", zap.String("type", env.Type), zap.Error(err))
			}
		}
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (types.Envelope, error) {
	var env types.Envelope
	_, data, err := conn.Read(ctx)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connects++
}

// detach fails every in-flight intent with ErrDisconnected.
func (c *Client) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) deliver(requestID string, ack types.Ack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[requestID]; ok {
		ch <- ack
		delete(c.pending, requestID)
	}
}

// Send writes one intent and waits for its ack. A negative ack is returned
// as *RejectedError alongside the ack itself.
func (c *Client) Send(ctx context.Context, kind string, data any) (types.Ack, error) {
	msg := types.ClientMessage{Type: kind, RequestID: uuid.NewString()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return types.Ack{}, err
		}
		msg.Data = raw
	}
	s := c.Session()
	if s.Role == nav.RoleAdmin {
		msg.Token = s.Token
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return types.Ack{}, err
	}

	reply := make(chan types.Ack, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return types.Ack{}, ErrDisconnected
	}
	c.pending[msg.RequestID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	select {
	case ack, ok := <-reply:
		if !ok {
			return types.Ack{}, ErrDisconnected
		}
		if !ack.OK {
			return ack, &RejectedError{Class: ack.Class, Message: ack.Message}
		}
		return ack, nil
	case <-ctx.Done():
		return types.Ack{}, ctx.Err()
	}
}

// Login exchanges the admin credential for a token and switches the client
// to an admin session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out types.LoginResponse
	if err := c.post(ctx, "/api/admin/login", types.LoginRequest{Username: username, Password: password}, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = Admin(out.Token)
	c.mu.Unlock()
	return nil
}

// Bid places a bid for teamID over HTTP.
func (c *Client) Bid(ctx context.Context, teamID string) (types.MessageResponse, error) {
	var out types.MessageResponse
	err := c.post(ctx, "/api/auction/bid", types.BidRequest{TeamID: teamID}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s := c.Session(); s.Role == nav.RoleAdmin {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var msg types.MessageResponse
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &RejectedError{Class: msg.Class, Message: fmt.Sprintf("%s: %s", resp.Status, msg.Message)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) socketURL(path string) string {
	base := c.opts.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}

func decodeData(env types.Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: empty data", env.Type)
	}
	return json.Unmarshal(env.Data, v)
}
