// Package authority owns the auction state. One goroutine applies every
// command in arrival order, writes the changed documents to the store and
// broadcasts the matching events.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/clock"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/internal/store"
	"github.com/technobid/auction-backend/pkg/types"
)

// ErrStopped is returned to callers once the authority has shut down.
var ErrStopped = errors.New("authority stopped")

// TickInterval is the bid countdown resolution.
const TickInterval = time.Second

type Msg interface{ isAuthorityMsg() }

type Intent struct {
	Cmd   engine.Command
	Reply chan Result
}

func (Intent) isAuthorityMsg() {}

// Result answers an Intent. Version is the global version after the command;
// it does not move when the command changed nothing.
type Result struct {
	Version uint64
	TeamID  string
	Events  []engine.Event
	Err     error
}

type GetState struct {
	Reply chan View
}

func (GetState) isAuthorityMsg() {}

// View is a read-only copy of the state. Callers must not mutate it.
type View struct {
	Version uint64
	State   engine.State
}

type tick struct{ gen uint64 }

func (tick) isAuthorityMsg() {}

type Shutdown struct{}

func (Shutdown) isAuthorityMsg() {}

// Broadcaster is the event channel fan-out.
type Broadcaster interface {
	Broadcast(msg types.ServerMessage)
}

type Options struct {
	Store       store.Store
	Broadcaster Broadcaster
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	// Version continues a restored document history.
	Version uint64
}

type Authority struct {
	inbox    chan Msg
	state    engine.State
	version  uint64
	rendered map[string][]byte

	store   store.Store
	bcast   Broadcaster
	clock   clock.Clock
	timer   clock.Timer
	gen     uint64
	log     *zap.Logger
	metrics *metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, initial engine.State, opts Options) *Authority {
	ctx, cancel := context.WithCancel(parent)
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Authority{
		inbox:    make(chan Msg, 64),
		state:    initial,
		version:  opts.Version,
		rendered: map[string][]byte{},
		store:    opts.Store,
		bcast:    opts.Broadcaster,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	a.boot()
	go a.loop()
	return a
}

// boot publishes the full document set and finishes a start that was
// interrupted by a restart of the process.
func (a *Authority) boot() {
	// keys left in the store that the state no longer renders get tombstoned
	for _, d := range a.store.List("") {
		a.rendered[d.Key] = nil
	}
	a.version++
	a.publish(nil)
	if a.state.Lobby == types.LobbyStarting {
		a.apply(engine.Command{Type: engine.CmdConfirmStart})
	}
	a.syncTimer(nil)
}

func (a *Authority) Inbox() chan<- Msg { return a.inbox }

// Done is closed when the loop has exited.
func (a *Authority) Done() <-chan struct{} { return a.done }

// Do applies cmd and waits for the outcome. The returned error is the
// engine's rejection, ctx's error or ErrStopped.
func (a *Authority) Do(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case a.inbox <- Intent{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-a.ctx.Done():
		return Result{}, ErrStopped
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-a.ctx.Done():
		return Result{}, ErrStopped
	}
}

func (a *Authority) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case a.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-a.ctx.Done():
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-a.ctx.Done():
		return View{}, ErrStopped
	}
}

func (a *Authority) post(m Msg) {
	select {
	case a.inbox <- m:
	case <-a.ctx.Done():
	}
}

func (a *Authority) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Intent:
				msg.Reply <- a.handle(msg.Cmd)

			case tick:
				if msg.gen != a.gen {
					// stopped or rescheduled after this tick was queued
					break
				}
				a.timer = nil
				res := a.apply(engine.Command{Type: engine.CmdTick})
				a.syncTimer(res.Events)

			case GetState:
				msg.Reply <- View{Version: a.version, State: a.state}

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

func (a *Authority) handle(cmd engine.Command) Result {
	if cmd.Type == engine.CmdCreateTeam && cmd.TeamID == "" {
		cmd.TeamID = uuid.NewString()
	}
	res := a.apply(cmd)
	if res.Err == nil && cmd.Type == engine.CmdStartAuction {
		// clients see STARTING and LIVE as two versions
		confirm := a.apply(engine.Command{Type: engine.CmdConfirmStart})
		res.Events = append(res.Events, confirm.Events...)
		res.Version = confirm.Version
	}
	a.syncTimer(res.Events)
	res.TeamID = cmd.TeamID
	return res
}

func (a *Authority) apply(cmd engine.Command) Result {
	start := a.clock.Now()
	events, next, err := engine.Apply(a.state, cmd)
	if err != nil {
		class := engine.ClassOf(err)
		a.metrics.RecordCommand(string(cmd.Type), string(class), a.clock.Now().Sub(start))
		if class == engine.ClassInternal {
			a.log.Error("command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
		} else {
			a.log.Debug("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
		}
		return Result{Version: a.version, Err: err}
	}

	a.state = next
	if len(events) == 0 {
		return Result{Version: a.version}
	}
	a.version++
	a.publish(events)
	a.record(events)
	a.metrics.RecordCommand(string(cmd.Type), "ok", a.clock.Now().Sub(start))

	if cmd.Type == engine.CmdTick {
		a.log.Debug("tick", zap.Uint64("version", a.version), zap.Int("timer", a.state.Auction.TimerSeconds))
	} else {
		a.log.Info("command applied",
			zap.String("command", string(cmd.Type)),
			zap.Uint64("version", a.version),
			zap.Int("events", len(events)),
		)
	}
	return Result{Version: a.version, Events: events}
}

func (a *Authority) record(events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtBidAccepted:
			a.metrics.RecordBid()
		case engine.EvtItemSold:
			a.metrics.RecordResolution(string(types.AuctionSold))
		case engine.EvtItemUnsold:
			a.metrics.RecordResolution(string(types.AuctionUnsold))
		case engine.EvtLobbyStatusChanged:
			a.log.Info("lobby status changed", zap.String("from", string(e.From)), zap.String("to", string(e.To)))
		}
	}
}

// syncTimer keeps exactly one pending tick while an item is ACTIVE in a
// LIVE auction. A new item or a timer reset restarts the second.
func (a *Authority) syncTimer(events []engine.Event) {
	running := a.state.Lobby == types.LobbyLive && a.state.Auction.Status == types.AuctionActive
	restart := false
	for _, e := range events {
		if e.Type == engine.EvtItemSelected || e.Type == engine.EvtTimerReset {
			restart = true
		}
	}

	if a.timer != nil && (!running || restart) {
		a.timer.Stop()
		a.timer = nil
		a.gen++
	}
	if running && a.timer == nil {
		a.gen++
		gen := a.gen
		a.timer = a.clock.AfterFunc(TickInterval, func() { a.post(tick{gen: gen}) })
	}
}

func (a *Authority) shutdown() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.cancel()
}
