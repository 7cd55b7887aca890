package client

import (
	"sort"
	"strings"
	"sync"

	"github.com/technobid/auction-backend/pkg/types"
)

// View merges the snapshot feed and the event channel into one read model.
// A document is only replaced by a strictly newer version of the same key,
// so replays and reordered deliveries are harmless.
type View struct {
	mu      sync.Mutex
	docs    map[string]types.Document
	subs    map[string]chan types.Document
	teams   types.TeamsUpdated
	teamsV  uint64
	online  []string
	onlineV uint64
	version uint64
}

func NewView() *View {
	return &View{
		docs: map[string]types.Document{},
		subs: map[string]chan types.Document{},
	}
}

// Apply stores d unless the view already holds that key at the same or a
// newer version. Tombstones are kept so a late older write cannot revive
// the key.
func (v *View) Apply(d types.Document) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.applyLocked(d)
}

func (v *View) applyLocked(d types.Document) bool {
	if cur, ok := v.docs[d.Key]; ok && cur.Version >= d.Version {
		return false
	}
	v.docs[d.Key] = d
	v.version = max(v.version, d.Version)
	if ch, ok := v.subs[d.Key]; ok {
		latest(ch, d)
	}
	return true
}

func (v *View) ApplySnapshot(docs []types.Document) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, d := range docs {
		v.applyLocked(d)
	}
}

// ApplyEvent folds an event-channel broadcast into the view. Older versions
// than the ones already seen are ignored.
func (v *View) ApplyEvent(env types.Envelope) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch env.Type {
	case types.EventTeamsUpdated:
		if env.Version < v.teamsV {
			return nil
		}
		var t types.TeamsUpdated
		if err := decodeData(env, &t); err != nil {
			return err
		}
		v.teams, v.teamsV = t, env.Version
	case types.EventOnlineUpdate:
		if env.Version < v.onlineV {
			return nil
		}
		var o types.OnlineParticipants
		if err := decodeData(env, &o); err != nil {
			return err
		}
		v.online, v.onlineV = o.EnrollmentIDs, env.Version
	case types.EventSnapshot:
		var snap types.Snapshot
		if err := decodeData(env, &snap); err != nil {
			return err
		}
		for _, d := range snap.Documents {
			v.applyLocked(d)
		}
	}
	v.version = max(v.version, env.Version)
	return nil
}

// Reset drops everything cached. Subscriptions stay open.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.docs = map[string]types.Document{}
	v.teams, v.teamsV = types.TeamsUpdated{}, 0
	v.online, v.onlineV = nil, 0
	v.version = 0
}

// Get returns the live document for key; tombstoned keys are absent.
func (v *View) Get(key string) (types.Document, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.docs[key]
	if !ok || d.Deleted {
		return types.Document{}, false
	}
	return d, true
}

func (v *View) List(prefix string) []types.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []types.Document
	for key, d := range v.docs {
		if strings.HasPrefix(key, prefix) && !d.Deleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Version is the newest version the view has seen on either channel.
func (v *View) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *View) Lobby() types.LobbyStatus {
	d, ok := v.Get(types.KeyLobby)
	if !ok {
		return ""
	}
	var l types.LobbySettings
	if err := d.Decode(&l); err != nil {
		return ""
	}
	return l.Status
}

func (v *View) Auction() types.AuctionState {
	var a types.AuctionState
	if d, ok := v.Get(types.KeyAuction); ok {
		_ = d.Decode(&a)
	}
	return a
}

// Teams prefers the team documents and falls back to the last teamsUpdated.
func (v *View) Teams() []types.Team {
	docs := v.List(types.PrefixTeams)
	if len(docs) == 0 {
		v.mu.Lock()
		defer v.mu.Unlock()
		return append([]types.Team(nil), v.teams.Teams...)
	}
	teams := make([]types.Team, 0, len(docs))
	for _, d := range docs {
		var t types.Team
		if err := d.Decode(&t); err == nil {
			teams = append(teams, t)
		}
	}
	return teams
}

func (v *View) Online() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.online...)
}

// Subscribe follows one key. The channel holds only the latest document, so a
// slow reader skips intermediate versions instead of blocking the view. A key
// has at most one subscription; subscribing again replaces it.
func (v *View) Subscribe(key string) (<-chan types.Document, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if old, ok := v.subs[key]; ok {
		close(old)
	}
	ch := make(chan types.Document, 1)
	v.subs[key] = ch
	if d, ok := v.docs[key]; ok {
		ch <- d
	}
	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if cur, ok := v.subs[key]; ok && cur == ch {
			close(ch)
			delete(v.subs, key)
		}
	}
}

// latest replaces whatever is pending on ch with d. Only the view sends on
// ch, and always under its lock.
func latest(ch chan types.Document, d types.Document) {
	select {
	case ch <- d:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- d
	}
}
