package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technobid/auction-backend/pkg/types"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    types.LobbyStatus
		cmd     Command
		to      types.LobbyStatus
		wantErr error
	}{
		{"reopen locked lobby", types.LobbyLocked, Command{Type: CmdReopenLobby}, types.LobbyOpen, nil},
		{"reopen open lobby", types.LobbyOpen, Command{Type: CmdReopenLobby}, "", ErrInvalidTransition},
		{"start from locked", types.LobbyLocked, Command{Type: CmdStartAuction}, types.LobbyStarting, nil},
		{"start from open", types.LobbyOpen, Command{Type: CmdStartAuction}, "", ErrInvalidTransition},
		{"confirm start", types.LobbyStarting, Command{Type: CmdConfirmStart}, types.LobbyLive, nil},
		{"pause live", types.LobbyLive, Command{Type: CmdPause}, types.LobbyPaused, nil},
		{"pause paused", types.LobbyPaused, Command{Type: CmdPause}, "", ErrInvalidTransition},
		{"resume paused", types.LobbyPaused, Command{Type: CmdResume}, types.LobbyLive, nil},
		{"end without confirm", types.LobbyLive, Command{Type: CmdEndAuction}, "", ErrConfirmationRequired},
		{"end live", types.LobbyLive, Command{Type: CmdEndAuction, Confirm: true}, types.LobbyResults, nil},
		{"end paused", types.LobbyPaused, Command{Type: CmdEndAuction, Confirm: true}, types.LobbyResults, nil},
		{"end from lobby", types.LobbyOpen, Command{Type: CmdEndAuction, Confirm: true}, "", ErrInvalidTransition},
		{"restart without confirm", types.LobbyResults, Command{Type: CmdRestart}, "", ErrConfirmationRequired},
		{"restart results", types.LobbyResults, Command{Type: CmdRestart, Confirm: true}, types.LobbyLocked, nil},
		{"restart live", types.LobbyLive, Command{Type: CmdRestart, Confirm: true}, "", ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := withTeams(t)
			s.Lobby = tc.from
			events, next, err := Apply(s, tc.cmd)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, next.Lobby)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, next.Lobby)
			assert.True(t, containsEvent(events, EvtLobbyStatusChanged))
		})
	}
}

func TestStartAuction_InitializesQueue(t *testing.T) {
	s := withTeams(t)
	_, s = mustApply(t, s, Command{Type: CmdLockLobby})
	events, s := mustApply(t, s, Command{Type: CmdStartAuction})

	assert.True(t, containsEvent(events, EvtAuctionReset))
	assert.Equal(t, types.LobbyStarting, s.Lobby)
	assert.Equal(t, types.AuctionIdle, s.Auction.Status)
	assert.Equal(t, types.PhaseBatters, s.Auction.Phase)
	assert.Equal(t, "b1", s.Auction.NextItemID)
	assert.Nil(t, s.Auction.CurrentItem)
}

func TestSelectItem(t *testing.T) {
	live := liveState(t)
	_, active := mustApply(t, live, Command{Type: CmdSelectItem, ItemID: "b1"})
	sold := live
	sold.Catalogue = append([]types.CatalogueEntry(nil), live.Catalogue...)
	sold.Catalogue[1].Status = types.ItemSold
	paused := live
	paused.Lobby = types.LobbyPaused

	cases := []struct {
		name    string
		setup   State
		itemID  string
		wantErr error
	}{
		{"selects batter", live, "b1", nil},
		{"unknown item", live, "zz", ErrItemNotFound},
		{"sold item", sold, "b2", ErrAlreadySold},
		{"wrong phase", live, "w1", ErrInvalidPhase},
		{"lobby paused", paused, "b1", ErrInvalidPhase},
		{"item already on the floor", active, "b2", ErrItemInProgress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, Command{Type: CmdSelectItem, ItemID: tc.itemID})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.setup, next)
				return
			}
			require.NoError(t, err)
			require.True(t, containsEvent(events, EvtItemSelected))
			a := next.Auction
			require.NotNil(t, a.CurrentItem)
			assert.Equal(t, "b1", a.CurrentItem.ID)
			assert.Equal(t, int64(1_000_000), a.CurrentBid)
			assert.Equal(t, types.AuctionActive, a.Status)
			assert.Equal(t, 3, a.TimerSeconds)
			assert.Empty(t, a.HighestBidderTeamID)
			assert.Equal(t, "b2", a.NextItemID)
			assert.True(t, next.Catalogue[0].WasSent)
		})
	}
}

func TestSelectNext_WalksQueue(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectNext})
	assert.Equal(t, "b1", s.Auction.CurrentItem.ID)
	_, s = mustApply(t, s, Command{Type: CmdResolve})
	_, s = mustApply(t, s, Command{Type: CmdSelectNext})
	assert.Equal(t, "b2", s.Auction.CurrentItem.ID)
	_, s = mustApply(t, s, Command{Type: CmdResolve})

	_, _, err := Apply(s, Command{Type: CmdSelectNext})
	assert.ErrorIs(t, err, ErrQueueExhausted)
}

func TestChangePhase(t *testing.T) {
	live := liveState(t)
	_, active := mustApply(t, live, Command{Type: CmdSelectItem, ItemID: "b1"})
	locked := withTeams(t)
	locked.Lobby = types.LobbyLocked

	cases := []struct {
		name    string
		setup   State
		phase   types.Phase
		wantErr error
	}{
		{"to bowlers", live, types.PhaseBowlers, nil},
		{"unknown phase", live, "FIELDERS", ErrValidation},
		{"item in progress", active, types.PhaseBowlers, ErrItemInProgress},
		{"before start", locked, types.PhaseBowlers, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, Command{Type: CmdChangePhase, Phase: tc.phase})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.setup, next)
				return
			}
			require.NoError(t, err)
			assert.True(t, containsEvent(events, EvtPhaseChanged))
			assert.Equal(t, types.PhaseBowlers, next.Auction.Phase)
			assert.Equal(t, "w1", next.Auction.NextItemID)
			assert.Equal(t, types.AuctionIdle, next.Auction.Status)
		})
	}
}

func TestSubmitBid_LadderIncrements(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})

	prev := s.Auction.CurrentBid
	for i, team := range []string{"A", "B", "A", "B"} {
		events, next := mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: team})
		require.True(t, containsEvent(events, EvtBidAccepted), "bid %d", i)
		assert.Equal(t, prev+DefaultBidIncrement, next.Auction.CurrentBid)
		assert.Equal(t, team, next.Auction.HighestBidderTeamID)
		prev = next.Auction.CurrentBid
		s = next
	}
}

func TestSubmitBid_Rejections(t *testing.T) {
	live := liveState(t)
	_, active := mustApply(t, live, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, leading := mustApply(t, active, Command{Type: CmdSubmitBid, TeamID: "A"})
	paused := active
	paused.Lobby = types.LobbyPaused
	expired := active.clone()
	expired.Auction.TimerSeconds = 0
	poor := active.clone()
	poor.Teams[0].Purse = 1_100_000

	cases := []struct {
		name    string
		setup   State
		teamID  string
		wantErr error
	}{
		{"nothing on the floor", live, "A", ErrNoActiveItem},
		{"paused", paused, "A", ErrAuctionPaused},
		{"timer expired", expired, "A", ErrTimeExpired},
		{"unknown team", active, "Z", ErrTeamNotFound},
		{"already leading", leading, "A", ErrAlreadyHighestBidder},
		{"purse below next bid", poor, "A", ErrInsufficientPurse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, Command{Type: CmdSubmitBid, TeamID: tc.teamID})
			require.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, events)
			assert.Equal(t, tc.setup, next)
		})
	}
}

func TestSubmitBid_TimerResetConfigurable(t *testing.T) {
	for _, reset := range []bool{true, false} {
		s := liveState(t)
		s.Rules.ResetTimerOnBid = reset
		_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
		_, s = mustApply(t, s, Command{Type: CmdTick})
		require.Equal(t, 2, s.Auction.TimerSeconds)

		events, s := mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "A"})
		if reset {
			assert.Equal(t, 3, s.Auction.TimerSeconds)
			assert.True(t, containsEvent(events, EvtTimerReset))
		} else {
			assert.Equal(t, 2, s.Auction.TimerSeconds)
			assert.False(t, containsEvent(events, EvtTimerReset))
		}
	}
}

func TestTick_ResolvesSold(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "B"})

	var events []Event
	for i := 0; i < 3; i++ {
		events, s = mustApply(t, s, Command{Type: CmdTick})
	}
	require.True(t, containsEvent(events, EvtItemSold))

	item := s.Catalogue[0]
	assert.Equal(t, types.ItemSold, item.Status)
	assert.Equal(t, "B", item.SoldToTeamID)
	assert.Equal(t, int64(1_200_000), item.SoldPrice)

	team, _ := s.Team("B")
	assert.Equal(t, int64(DefaultInitialPurse-1_200_000), team.Purse)
	require.Len(t, team.BoughtItems, 1)
	assert.Equal(t, "b1", team.BoughtItems[0].ItemID)

	assert.Equal(t, types.AuctionSold, s.Auction.Status)
	require.NotNil(t, s.Auction.LastResolution)
	assert.Equal(t, "Bravo", s.Auction.LastResolution.TeamName)

	// resolving again changes nothing
	events, again := mustApply(t, s, Command{Type: CmdResolve})
	assert.Empty(t, events)
	assert.Equal(t, s, again)
	events, again = mustApply(t, s, Command{Type: CmdTick})
	assert.Empty(t, events)
	assert.Equal(t, s, again)

	_, _, err := Apply(s, Command{Type: CmdSelectItem, ItemID: "b1"})
	assert.ErrorIs(t, err, ErrAlreadySold)
}

func TestTick_ResolvesUnsoldAndAllowsReselect(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	var events []Event
	for i := 0; i < 3; i++ {
		events, s = mustApply(t, s, Command{Type: CmdTick})
	}
	require.True(t, containsEvent(events, EvtItemUnsold))
	assert.Equal(t, types.ItemUnsold, s.Catalogue[0].Status)
	assert.Equal(t, types.AuctionUnsold, s.Auction.Status)

	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	assert.Equal(t, types.AuctionActive, s.Auction.Status)
}

func TestTick_FrozenWhilePaused(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "A"})
	_, s = mustApply(t, s, Command{Type: CmdPause})

	events, next := mustApply(t, s, Command{Type: CmdTick})
	assert.Empty(t, events)
	assert.Equal(t, s, next)

	_, next = mustApply(t, s, Command{Type: CmdResume})
	assert.Equal(t, s.Auction, next.Auction)
}

func TestEndAuction_ResolvesActiveItem(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "A"})

	events, s := mustApply(t, s, Command{Type: CmdEndAuction, Confirm: true})
	assert.True(t, containsEvent(events, EvtItemSold))
	assert.True(t, containsEvent(events, EvtLobbyStatusChanged))
	assert.Equal(t, types.LobbyResults, s.Lobby)
	assert.Equal(t, types.ItemSold, s.Catalogue[0].Status)
}

func TestRestart_ResetsPursesAndCatalogue(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "A"})
	_, s = mustApply(t, s, Command{Type: CmdEndAuction, Confirm: true})

	events, s := mustApply(t, s, Command{Type: CmdRestart, Confirm: true})
	assert.True(t, containsEvent(events, EvtAuctionReset))
	assert.Equal(t, types.LobbyLocked, s.Lobby)
	for _, item := range s.Catalogue {
		assert.Equal(t, types.ItemAvailable, item.Status)
		assert.False(t, item.WasSent)
	}
	for _, team := range s.Teams {
		assert.Equal(t, int64(DefaultInitialPurse), team.Purse)
		assert.Empty(t, team.BoughtItems)
		assert.NotEmpty(t, team.Members)
	}
	assert.Equal(t, types.AuctionIdle, s.Auction.Status)
}

func TestPurseNeverNegative(t *testing.T) {
	s := liveState(t)
	s.Teams[0].Purse = 1_100_000
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})

	_, _, err := Apply(s, Command{Type: CmdSubmitBid, TeamID: "A"})
	require.ErrorIs(t, err, ErrInsufficientPurse)

	for i := 0; i < 3; i++ {
		_, s = mustApply(t, s, Command{Type: CmdTick})
	}
	assert.Equal(t, types.ItemUnsold, s.Catalogue[0].Status)
	assert.Equal(t, int64(1_100_000), s.Teams[0].Purse)
}

func TestStandings(t *testing.T) {
	s := liveState(t)
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b2"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "A"})
	_, s = mustApply(t, s, Command{Type: CmdResolve})
	_, s = mustApply(t, s, Command{Type: CmdSelectItem, ItemID: "b1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitBid, TeamID: "B"})
	_, s = mustApply(t, s, Command{Type: CmdResolve})

	rows := Standings(s)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0].Team.ID)
	assert.Equal(t, 90, rows[0].TotalScore)
	assert.Equal(t, 1, rows[0].Players)
	assert.Equal(t, "A", rows[1].Team.ID)
	assert.Equal(t, int64(1_000_000), rows[1].Spent)
}

func TestClassOf(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{invalid("x"), ClassValidation},
		{ErrConfirmationRequired, ClassValidation},
		{ErrCapacity, ClassContention},
		{ErrAlreadyHighestBidder, ClassContention},
		{ErrTeamNotFound, ClassNotFound},
		{&UnassignedParticipantsError{Count: 2}, ClassState},
		{ErrTimeExpired, ClassState},
		{assert.AnError, ClassInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassOf(tc.err), "%v", tc.err)
	}

	_, _, err := Apply(State{Lobby: types.LobbyLocked, Rules: testRules()}, Command{Type: CmdCreateTeam, TeamID: "A", Name: "A", MaxSize: 1, EnrollmentID: "p1"})
	assert.Equal(t, ClassValidation, ClassOf(err))
}
