package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/technobid/auction-backend/pkg/types"
)

func participantOnline(s State, cmd Command) ([]Event, State, error) {
	if cmd.EnrollmentID == "" {
		return nil, s, invalid("enrollment id is required")
	}
	next := s.clone()
	next.Online[cmd.EnrollmentID]++
	if next.Online[cmd.EnrollmentID] > 1 {
		// another connection of an already online participant
		return nil, next, nil
	}
	return []Event{{Type: EvtPresenceChanged, EnrollmentID: cmd.EnrollmentID}}, next, nil
}

func participantOffline(s State, cmd Command) ([]Event, State, error) {
	if s.Online[cmd.EnrollmentID] <= 0 {
		return nil, s, nil
	}
	next := s.clone()
	next.Online[cmd.EnrollmentID]--
	if next.Online[cmd.EnrollmentID] > 0 {
		return nil, next, nil
	}
	delete(next.Online, cmd.EnrollmentID)
	return []Event{{Type: EvtPresenceChanged, EnrollmentID: cmd.EnrollmentID}}, next, nil
}

func validSize(s State, size int) bool {
	return size >= 1 && size <= s.Rules.MaxTeamSize
}

func createTeam(s State, cmd Command) ([]Event, State, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, s, invalid("team name is required")
	}
	if !validSize(s, cmd.MaxSize) {
		return nil, s, invalid("team size must be between 1 and %d", s.Rules.MaxTeamSize)
	}
	if cmd.TeamID == "" {
		return nil, s, invalid("team id is required")
	}
	if s.Lobby != types.LobbyOpen {
		return nil, s, fmt.Errorf("%w: %w", ErrValidation, ErrLobbyClosed)
	}
	if _, ok := s.Participants[cmd.EnrollmentID]; !ok {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownParticipant, cmd.EnrollmentID)
	}
	if s.TeamOf(cmd.EnrollmentID) >= 0 {
		return nil, s, fmt.Errorf("%w: %w", ErrValidation, ErrAlreadyAssigned)
	}
	if s.teamIndex(cmd.TeamID) >= 0 {
		return nil, s, invalid("team %q already exists", cmd.TeamID)
	}

	next := s.clone()
	next.Teams = append(next.Teams, types.Team{
		ID:          cmd.TeamID,
		Name:        name,
		MaxSize:     cmd.MaxSize,
		Members:     []string{cmd.EnrollmentID},
		Purse:       s.Rules.InitialPurse,
		BoughtItems: []types.Purchase{},
	})
	return []Event{{Type: EvtTeamCreated, TeamID: cmd.TeamID, EnrollmentID: cmd.EnrollmentID}}, next, nil
}

func joinTeam(s State, cmd Command) ([]Event, State, error) {
	if cmd.EnrollmentID == "" {
		return nil, s, invalid("enrollment id is required")
	}
	if s.Lobby != types.LobbyOpen {
		return nil, s, ErrLobbyClosed
	}
	if _, ok := s.Participants[cmd.EnrollmentID]; !ok {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownParticipant, cmd.EnrollmentID)
	}
	idx := s.teamIndex(cmd.TeamID)
	if idx < 0 {
		return nil, s, ErrTeamNotFound
	}
	team := s.Teams[idx]
	if team.HasMember(cmd.EnrollmentID) {
		return nil, s, nil
	}
	if s.TeamOf(cmd.EnrollmentID) >= 0 {
		return nil, s, ErrAlreadyAssigned
	}
	if team.Full() {
		return nil, s, ErrCapacity
	}

	next := s.clone()
	next.Teams[idx].Members = append(next.Teams[idx].Members, cmd.EnrollmentID)
	return []Event{{Type: EvtMemberJoined, TeamID: cmd.TeamID, EnrollmentID: cmd.EnrollmentID}}, next, nil
}

func removeMember(s State, cmd Command) ([]Event, State, error) {
	idx := s.teamIndex(cmd.TeamID)
	if idx < 0 || !s.Teams[idx].HasMember(cmd.EnrollmentID) {
		return nil, s, nil
	}
	next := s.clone()
	next.Teams[idx].Members = slices.DeleteFunc(next.Teams[idx].Members, func(m string) bool {
		return m == cmd.EnrollmentID
	})
	return []Event{{Type: EvtMemberRemoved, TeamID: cmd.TeamID, EnrollmentID: cmd.EnrollmentID}}, next, nil
}

func updateTeam(s State, cmd Command) ([]Event, State, error) {
	idx := s.teamIndex(cmd.TeamID)
	if idx < 0 {
		return nil, s, ErrTeamNotFound
	}
	team := s.Teams[idx]
	name := team.Name
	if cmd.NewName != nil {
		name = strings.TrimSpace(*cmd.NewName)
		if name == "" {
			return nil, s, invalid("team name is required")
		}
	}
	size := team.MaxSize
	if cmd.NewMaxSize != nil {
		size = *cmd.NewMaxSize
		if !validSize(s, size) {
			return nil, s, invalid("team size must be between 1 and %d", s.Rules.MaxTeamSize)
		}
		if size < len(team.Members) {
			return nil, s, ErrInvalidSize
		}
	}
	if name == team.Name && size == team.MaxSize {
		return nil, s, nil
	}

	next := s.clone()
	next.Teams[idx].Name = name
	next.Teams[idx].MaxSize = size
	return []Event{{Type: EvtTeamUpdated, TeamID: cmd.TeamID}}, next, nil
}

func deleteTeam(s State, cmd Command) ([]Event, State, error) {
	idx := s.teamIndex(cmd.TeamID)
	if idx < 0 {
		return nil, s, nil
	}
	next := s.clone()
	next.Teams = slices.Delete(next.Teams, idx, idx+1)
	return []Event{{Type: EvtTeamDeleted, TeamID: cmd.TeamID}}, next, nil
}
