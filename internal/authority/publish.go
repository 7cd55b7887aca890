package authority

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/pkg/types"
)

// Documents renders every snapshot-feed document of s.
func Documents(s engine.State) map[string]any {
	docs := make(map[string]any, 2+len(s.Teams)+len(s.Catalogue)+len(s.Participants))
	docs[types.KeyLobby] = types.LobbySettings{Status: s.Lobby}
	docs[types.KeyAuction] = s.Auction
	for _, t := range s.Teams {
		docs[types.TeamKey(t.ID)] = t
	}
	for _, item := range s.Catalogue {
		docs[types.PlayerKey(item.ID)] = item
	}
	for id, p := range s.Participants {
		docs[types.ParticipantKey(id)] = p
	}
	return docs
}

// publish writes the documents that differ from the last publication,
// stamped with the current version, and broadcasts the event-channel view
// of what changed.
func (a *Authority) publish(events []engine.Event) {
	current := map[string][]byte{}
	for key, v := range Documents(a.state) {
		raw, err := json.Marshal(v)
		if err != nil {
			a.log.Error("render document", zap.String("key", key), zap.Error(err))
			continue
		}
		current[key] = raw
	}

	var changed []types.Document
	teamsChanged := false
	for key, raw := range current {
		if prev, ok := a.rendered[key]; ok && bytes.Equal(prev, raw) {
			continue
		}
		changed = append(changed, types.Document{Key: key, Version: a.version, Data: raw})
		if key == types.KeyLobby || isTeam(key) {
			teamsChanged = true
		}
	}
	for key := range a.rendered {
		if _, ok := current[key]; !ok {
			changed = append(changed, types.Tombstone(key, a.version))
			teamsChanged = teamsChanged || isTeam(key)
		}
	}
	a.rendered = current
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	if err := a.store.Put(a.ctx, changed...); err != nil {
		// forget the batch so the next publication writes it again
		a.log.Warn("persist documents", zap.Int("documents", len(changed)), zap.Error(err))
		for _, d := range changed {
			a.rendered[d.Key] = nil
		}
	}

	if a.bcast == nil {
		return
	}
	if teamsChanged {
		a.bcast.Broadcast(types.ServerMessage{
			Type:    types.EventTeamsUpdated,
			Version: a.version,
			Data:    TeamsPayload(a.state),
		})
	}
	for _, e := range events {
		if e.Type == engine.EvtPresenceChanged {
			a.bcast.Broadcast(types.ServerMessage{
				Type:    types.EventOnlineUpdate,
				Version: a.version,
				Data:    types.OnlineParticipants{EnrollmentIDs: a.state.OnlineIDs()},
			})
			break
		}
	}
}

// TeamsPayload is the teamsUpdated body for s.
func TeamsPayload(s engine.State) types.TeamsUpdated {
	teams := make([]types.Team, len(s.Teams))
	for i, t := range s.Teams {
		teams[i] = t.Clone()
	}
	return types.TeamsUpdated{Teams: teams, Locked: s.Locked()}
}

func isTeam(key string) bool {
	return strings.HasPrefix(key, types.PrefixTeams)
}
