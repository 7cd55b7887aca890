package engine

import (
	"fmt"

	"github.com/technobid/auction-backend/pkg/types"
)

func selectItem(s State, itemID string) ([]Event, State, error) {
	idx := s.itemIndex(itemID)
	if idx < 0 {
		return nil, s, ErrItemNotFound
	}
	item := s.Catalogue[idx]
	if item.Status == types.ItemSold {
		return nil, s, ErrAlreadySold
	}
	if s.Lobby != types.LobbyLive {
		return nil, s, fmt.Errorf("%w: auction is %s", ErrInvalidPhase, s.Lobby)
	}
	if item.Phase != s.Auction.Phase {
		return nil, s, fmt.Errorf("%w: %s is a %s item, current phase is %s", ErrInvalidPhase, item.Name, item.Phase, s.Auction.Phase)
	}
	if s.Auction.Status == types.AuctionActive {
		return nil, s, ErrItemInProgress
	}

	next := s.clone()
	next.Catalogue[idx].WasSent = true
	current := next.Catalogue[idx]
	next.Auction = types.AuctionState{
		CurrentItem:  &current,
		CurrentBid:   current.BasePrice,
		TimerSeconds: next.Rules.TimerSeconds,
		Status:       types.AuctionActive,
		Phase:        s.Auction.Phase,
		NextItemID:   next.firstQueued(s.Auction.Phase),
	}
	return []Event{{Type: EvtItemSelected, ItemID: itemID, Amount: current.BasePrice}}, next, nil
}

func selectNext(s State) ([]Event, State, error) {
	if s.Auction.NextItemID == "" {
		return nil, s, ErrQueueExhausted
	}
	return selectItem(s, s.Auction.NextItemID)
}

func changePhase(s State, cmd Command) ([]Event, State, error) {
	phase, ok := types.ParsePhase(string(cmd.Phase))
	if !ok {
		return nil, s, invalid("unknown phase %q", cmd.Phase)
	}
	if !allowed(s.Lobby, []types.LobbyStatus{types.LobbyLive, types.LobbyPaused}) {
		return nil, s, fmt.Errorf("%w: auction has not started", ErrInvalidTransition)
	}
	if s.Auction.Status == types.AuctionActive {
		return nil, s, ErrItemInProgress
	}

	next := s.clone()
	next.Auction = types.AuctionState{
		Status:         types.AuctionIdle,
		LastResolution: next.Auction.LastResolution,
		Phase:          phase,
		NextItemID:     next.firstQueued(phase),
	}
	return []Event{{Type: EvtPhaseChanged, Phase: phase}}, next, nil
}

func submitBid(s State, cmd Command) ([]Event, State, error) {
	a := s.Auction
	if a.Status != types.AuctionActive {
		return nil, s, ErrNoActiveItem
	}
	if s.Lobby == types.LobbyPaused {
		return nil, s, ErrAuctionPaused
	}
	if s.Lobby != types.LobbyLive {
		return nil, s, ErrNoActiveItem
	}
	if a.TimerSeconds <= 0 {
		return nil, s, ErrTimeExpired
	}
	idx := s.teamIndex(cmd.TeamID)
	if idx < 0 {
		return nil, s, ErrTeamNotFound
	}
	if a.HighestBidderTeamID == cmd.TeamID {
		return nil, s, ErrAlreadyHighestBidder
	}
	amount := a.CurrentBid + s.Rules.BidIncrement
	if s.Teams[idx].Purse < amount {
		return nil, s, ErrInsufficientPurse
	}

	next := s.clone()
	next.Auction.CurrentBid = amount
	next.Auction.HighestBidderTeamID = cmd.TeamID
	next.Auction.HighestBidderName = s.Teams[idx].Name
	events := []Event{{Type: EvtBidAccepted, TeamID: cmd.TeamID, ItemID: a.CurrentItem.ID, Amount: amount}}
	if s.Rules.ResetTimerOnBid {
		next.Auction.TimerSeconds = s.Rules.TimerSeconds
		events = append(events, Event{Type: EvtTimerReset, ItemID: a.CurrentItem.ID})
	}
	return events, next, nil
}

// tick advances the countdown by one second. The item resolves at zero.
func tick(s State) ([]Event, State, error) {
	if s.Lobby != types.LobbyLive || s.Auction.Status != types.AuctionActive {
		return nil, s, nil
	}
	next := s.clone()
	next.Auction.TimerSeconds--
	events := []Event{{Type: EvtTimerTicked, ItemID: next.Auction.CurrentItem.ID, Amount: int64(next.Auction.TimerSeconds)}}
	if next.Auction.TimerSeconds > 0 {
		return events, next, nil
	}
	next.Auction.TimerSeconds = 0
	more, next, err := resolve(next)
	if err != nil {
		return nil, s, err
	}
	return append(events, more...), next, nil
}

// resolve closes the active item: SOLD to the highest bidder when there is
// one, UNSOLD otherwise. Without an active item it changes nothing.
func resolve(s State) ([]Event, State, error) {
	a := s.Auction
	if a.Status != types.AuctionActive || a.CurrentItem == nil {
		return nil, s, nil
	}
	itemIdx := s.itemIndex(a.CurrentItem.ID)
	if itemIdx < 0 {
		return nil, s, fmt.Errorf("%w: active item %q", ErrItemNotFound, a.CurrentItem.ID)
	}

	next := s.clone()
	item := &next.Catalogue[itemIdx]
	res := &types.Resolution{ItemID: item.ID, ItemName: item.Name}

	teamIdx := next.teamIndex(a.HighestBidderTeamID)
	var event Event
	if teamIdx >= 0 && next.Teams[teamIdx].Purse >= a.CurrentBid {
		team := &next.Teams[teamIdx]
		team.Purse -= a.CurrentBid
		team.BoughtItems = append(team.BoughtItems, types.Purchase{
			ItemID: item.ID,
			Name:   item.Name,
			Role:   item.Role,
			Kind:   item.Kind,
			Price:  a.CurrentBid,
		})
		item.Status = types.ItemSold
		item.SoldToTeamID = team.ID
		item.SoldPrice = a.CurrentBid

		res.Status = types.AuctionSold
		res.TeamID = team.ID
		res.TeamName = team.Name
		res.Price = a.CurrentBid
		event = Event{Type: EvtItemSold, ItemID: item.ID, TeamID: team.ID, Amount: a.CurrentBid}
	} else {
		item.Status = types.ItemUnsold
		res.Status = types.AuctionUnsold
		event = Event{Type: EvtItemUnsold, ItemID: item.ID}
	}

	resolved := *item
	next.Auction.CurrentItem = &resolved
	next.Auction.Status = res.Status
	next.Auction.TimerSeconds = 0
	next.Auction.LastResolution = res
	next.Auction.NextItemID = next.firstQueued(next.Auction.Phase)
	return []Event{event}, next, nil
}
