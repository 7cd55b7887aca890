package engine

import (
	"slices"
	"sort"

	"github.com/technobid/auction-backend/pkg/types"
)

const (
	DefaultBidIncrement = 200_000
	DefaultTimerSeconds = 20
	DefaultInitialPurse = 10_000_000
	DefaultMaxTeamSize  = 5
)

func DefaultRules() Rules {
	return Rules{
		BidIncrement:    DefaultBidIncrement,
		TimerSeconds:    DefaultTimerSeconds,
		ResetTimerOnBid: true,
		InitialPurse:    DefaultInitialPurse,
		MaxTeamSize:     DefaultMaxTeamSize,
	}
}

// NewState builds an OPEN lobby over the given registry and catalogue.
// Catalogue entries keep their order; it is the queue order inside a phase.
func NewState(rules Rules, participants []types.Participant, catalogue []types.CatalogueEntry) State {
	if rules.MaxTeamSize <= 0 {
		rules.MaxTeamSize = DefaultMaxTeamSize
	}
	s := State{
		Lobby:        types.LobbyOpen,
		Teams:        []types.Team{},
		Catalogue:    make([]types.CatalogueEntry, 0, len(catalogue)),
		Participants: make(map[string]types.Participant, len(participants)),
		Online:       map[string]int{},
		Auction:      types.AuctionState{Status: types.AuctionIdle, Phase: types.PhaseBatters},
		Rules:        rules,
	}
	for _, p := range participants {
		s.Participants[p.EnrollmentID] = p
	}
	for _, item := range catalogue {
		if item.Status == "" {
			item.Status = types.ItemAvailable
		}
		if item.Kind == "" {
			item.Kind = KindFor(item.Phase)
		}
		s.Catalogue = append(s.Catalogue, item)
	}
	return s
}

// KindFor is the default kind of an entry whose seed omitted it.
func KindFor(phase types.Phase) types.Kind {
	if phase == types.PhaseAccessories {
		return types.KindAccessory
	}
	return types.KindPlayer
}

func (s State) clone() State {
	next := s
	next.Teams = make([]types.Team, len(s.Teams))
	for i, t := range s.Teams {
		next.Teams[i] = t.Clone()
	}
	next.Catalogue = slices.Clone(s.Catalogue)
	next.Online = make(map[string]int, len(s.Online))
	for k, v := range s.Online {
		next.Online[k] = v
	}
	next.Auction = s.Auction.Clone()
	return next
}

func (s State) teamIndex(id string) int {
	for i, t := range s.Teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TeamOf returns the index of the team holding enrollmentID, or -1.
func (s State) TeamOf(enrollmentID string) int {
	for i, t := range s.Teams {
		if t.HasMember(enrollmentID) {
			return i
		}
	}
	return -1
}

func (s State) itemIndex(id string) int {
	for i, item := range s.Catalogue {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Team looks a team up by ID.
func (s State) Team(id string) (types.Team, bool) {
	if i := s.teamIndex(id); i >= 0 {
		return s.Teams[i], true
	}
	return types.Team{}, false
}

// Items returns the catalogue entries of one phase in queue order.
func (s State) Items(phase types.Phase) []types.CatalogueEntry {
	out := []types.CatalogueEntry{}
	for _, item := range s.Catalogue {
		if item.Phase == phase {
			out = append(out, item)
		}
	}
	return out
}

// firstQueued is the queue cursor: the first entry of phase that has never
// been sent to the floor and is not sold.
func (s State) firstQueued(phase types.Phase) string {
	for _, item := range s.Catalogue {
		if item.Phase == phase && !item.WasSent && item.Status != types.ItemSold {
			return item.ID
		}
	}
	return ""
}

// OnlineIDs lists connected enrollment IDs in sorted order.
func (s State) OnlineIDs() []string {
	ids := make([]string, 0, len(s.Online))
	for id, n := range s.Online {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Unassigned counts online, registered participants that belong to no team.
func (s State) Unassigned() int {
	count := 0
	for id, n := range s.Online {
		if n <= 0 {
			continue
		}
		if _, registered := s.Participants[id]; !registered {
			continue
		}
		if s.TeamOf(id) < 0 {
			count++
		}
	}
	return count
}

// Locked reports whether team membership is frozen.
func (s State) Locked() bool {
	return s.Lobby != types.LobbyOpen
}

func lobbyEvent(from, to types.LobbyStatus) Event {
	return Event{Type: EvtLobbyStatusChanged, From: from, To: to}
}
