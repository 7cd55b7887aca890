package engine

import (
	"github.com/technobid/auction-backend/pkg/types"
)

// Rules are the tunables of one auction. They never change while it runs.
type Rules struct {
	BidIncrement    int64
	TimerSeconds    int
	ResetTimerOnBid bool
	InitialPurse    int64
	MaxTeamSize     int
}

// State is everything the authority owns. Participants is read-only inside
// the engine and may be shared between states; every other field is copied
// before a command mutates it.
type State struct {
	Lobby        types.LobbyStatus
	Teams        []types.Team
	Catalogue    []types.CatalogueEntry
	Participants map[string]types.Participant
	Online       map[string]int
	Auction      types.AuctionState
	Rules        Rules
}

type CommandType string

const (
	CmdParticipantOnline  CommandType = "ParticipantOnline"
	CmdParticipantOffline CommandType = "ParticipantOffline"

	CmdCreateTeam   CommandType = "CreateTeam"
	CmdJoinTeam     CommandType = "JoinTeam"
	CmdRemoveMember CommandType = "RemoveMember"
	CmdUpdateTeam   CommandType = "UpdateTeam"
	CmdDeleteTeam   CommandType = "DeleteTeam"

	CmdLockLobby    CommandType = "LockLobby"
	CmdReopenLobby  CommandType = "ReopenLobby"
	CmdStartAuction CommandType = "StartAuction"
	CmdConfirmStart CommandType = "ConfirmStart"
	CmdPause        CommandType = "Pause"
	CmdResume       CommandType = "Resume"
	CmdEndAuction   CommandType = "EndAuction"
	CmdRestart      CommandType = "Restart"

	CmdSelectItem  CommandType = "SelectItem"
	CmdSelectNext  CommandType = "SelectNext"
	CmdChangePhase CommandType = "ChangePhase"
	CmdSubmitBid   CommandType = "SubmitBid"
	CmdTick        CommandType = "Tick"
	CmdResolve     CommandType = "Resolve"
)

/*
	CmdCreateTeam / CmdJoinTeam   -> EvtTeamCreated / EvtMemberJoined
	CmdLockLobby .. CmdRestart     -> EvtLobbyStatusChanged (+ EvtAuctionReset on start/restart)
	CmdSelectItem / CmdSelectNext  -> EvtItemSelected
	CmdSubmitBid                   -> EvtBidAccepted (+ EvtTimerReset)
	CmdTick                        -> EvtTimerTicked -> EvtItemSold | EvtItemUnsold at zero
*/

type Command struct {
	Type         CommandType
	TeamID       string
	EnrollmentID string
	Name         string
	MaxSize      int
	NewName      *string
	NewMaxSize   *int
	ItemID       string
	Phase        types.Phase
	Confirm      bool
}

type EventType string

const (
	EvtPresenceChanged    EventType = "PresenceChanged"
	EvtTeamCreated        EventType = "TeamCreated"
	EvtMemberJoined       EventType = "MemberJoined"
	EvtMemberRemoved      EventType = "MemberRemoved"
	EvtTeamUpdated        EventType = "TeamUpdated"
	EvtTeamDeleted        EventType = "TeamDeleted"
	EvtLobbyStatusChanged EventType = "LobbyStatusChanged"
	EvtAuctionReset       EventType = "AuctionReset"
	EvtPhaseChanged       EventType = "PhaseChanged"
	EvtItemSelected       EventType = "ItemSelected"
	EvtBidAccepted        EventType = "BidAccepted"
	EvtTimerReset         EventType = "TimerReset"
	EvtTimerTicked        EventType = "TimerTicked"
	EvtItemSold           EventType = "ItemSold"
	EvtItemUnsold         EventType = "ItemUnsold"
)

type Event struct {
	Type         EventType
	TeamID       string
	EnrollmentID string
	ItemID       string
	Amount       int64
	From         types.LobbyStatus
	To           types.LobbyStatus
	Phase        types.Phase
}

// Apply validates cmd against s and returns the emitted events and the next
// state. On error, or when the command changes nothing, s is returned as is
// and the events are empty.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdParticipantOnline:
		return participantOnline(s, cmd)
	case CmdParticipantOffline:
		return participantOffline(s, cmd)

	case CmdCreateTeam:
		return createTeam(s, cmd)
	case CmdJoinTeam:
		return joinTeam(s, cmd)
	case CmdRemoveMember:
		return removeMember(s, cmd)
	case CmdUpdateTeam:
		return updateTeam(s, cmd)
	case CmdDeleteTeam:
		return deleteTeam(s, cmd)

	case CmdLockLobby:
		return lockLobby(s)
	case CmdReopenLobby:
		return transition(s, types.LobbyOpen, types.LobbyLocked)
	case CmdStartAuction:
		return startAuction(s)
	case CmdConfirmStart:
		return transition(s, types.LobbyLive, types.LobbyStarting)
	case CmdPause:
		return transition(s, types.LobbyPaused, types.LobbyLive)
	case CmdResume:
		return transition(s, types.LobbyLive, types.LobbyPaused)
	case CmdEndAuction:
		return endAuction(s, cmd)
	case CmdRestart:
		return restart(s, cmd)

	case CmdSelectItem:
		return selectItem(s, cmd.ItemID)
	case CmdSelectNext:
		return selectNext(s)
	case CmdChangePhase:
		return changePhase(s, cmd)
	case CmdSubmitBid:
		return submitBid(s, cmd)
	case CmdTick:
		return tick(s)
	case CmdResolve:
		return resolve(s)

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
