package engine

import (
	"fmt"

	"github.com/technobid/auction-backend/pkg/types"
)

// transition moves the lobby from one of the allowed statuses to `to`.
func transition(s State, to types.LobbyStatus, from ...types.LobbyStatus) ([]Event, State, error) {
	if !allowed(s.Lobby, from) {
		return nil, s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Lobby, to)
	}
	next := s.clone()
	next.Lobby = to
	return []Event{lobbyEvent(s.Lobby, to)}, next, nil
}

func allowed(current types.LobbyStatus, from []types.LobbyStatus) bool {
	for _, f := range from {
		if current == f {
			return true
		}
	}
	return false
}

func lockLobby(s State) ([]Event, State, error) {
	if s.Lobby != types.LobbyOpen {
		return nil, s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Lobby, types.LobbyLocked)
	}
	if n := s.Unassigned(); n > 0 {
		return nil, s, &UnassignedParticipantsError{Count: n}
	}
	for _, t := range s.Teams {
		if len(t.Members) == 0 {
			return nil, s, ErrEmptyTeam
		}
	}
	return transition(s, types.LobbyLocked, types.LobbyOpen)
}

func startAuction(s State) ([]Event, State, error) {
	events, next, err := transition(s, types.LobbyStarting, types.LobbyLocked)
	if err != nil {
		return nil, s, err
	}
	next.Auction = types.AuctionState{
		Status:     types.AuctionIdle,
		Phase:      types.PhaseBatters,
		NextItemID: next.firstQueued(types.PhaseBatters),
	}
	return append(events, Event{Type: EvtAuctionReset, Phase: types.PhaseBatters}), next, nil
}

func endAuction(s State, cmd Command) ([]Event, State, error) {
	if !cmd.Confirm {
		return nil, s, ErrConfirmationRequired
	}
	if !allowed(s.Lobby, []types.LobbyStatus{types.LobbyLive, types.LobbyPaused}) {
		return nil, s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Lobby, types.LobbyResults)
	}
	events, next, err := resolve(s)
	if err != nil {
		return nil, s, err
	}
	more, next, err := transition(next, types.LobbyResults, types.LobbyLive, types.LobbyPaused)
	if err != nil {
		return nil, s, err
	}
	return append(events, more...), next, nil
}

// restart returns a finished auction to LOCKED with every purchase undone.
// Teams and their members survive.
func restart(s State, cmd Command) ([]Event, State, error) {
	if !cmd.Confirm {
		return nil, s, ErrConfirmationRequired
	}
	events, next, err := transition(s, types.LobbyLocked, types.LobbyResults)
	if err != nil {
		return nil, s, err
	}
	for i := range next.Catalogue {
		item := &next.Catalogue[i]
		item.Status = types.ItemAvailable
		item.WasSent = false
		item.SoldToTeamID = ""
		item.SoldPrice = 0
	}
	for i := range next.Teams {
		next.Teams[i].Purse = next.Rules.InitialPurse
		next.Teams[i].BoughtItems = []types.Purchase{}
	}
	next.Auction = types.AuctionState{Status: types.AuctionIdle, Phase: types.PhaseBatters}
	return append(events, Event{Type: EvtAuctionReset, Phase: types.PhaseBatters}), next, nil
}
