package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/pkg/types"
)

var errUnknownIntent = errors.New("unknown intent")

// toCommand maps a mutating intent onto an engine command. admin reports
// whether the intent needs a verified token.
func toCommand(m types.ClientMessage) (cmd engine.Command, admin bool, err error) {
	switch m.Type {
	case types.IntentCreateTeam:
		var d types.CreateTeam
		if err := decode(m.Data, &d); err != nil {
			return cmd, false, err
		}
		return engine.Command{
			Type:         engine.CmdCreateTeam,
			Name:         d.Name,
			MaxSize:      d.MaxSize,
			EnrollmentID: d.CreatorEnrollmentID,
		}, false, nil

	case types.IntentJoinTeam:
		var d types.JoinTeam
		if err := decode(m.Data, &d); err != nil {
			return cmd, false, err
		}
		return engine.Command{Type: engine.CmdJoinTeam, TeamID: d.TeamID, EnrollmentID: d.Enrollment}, false, nil

	case types.IntentAdminLock:
		return engine.Command{Type: engine.CmdLockLobby}, true, nil

	case types.IntentAdminReopen:
		return engine.Command{Type: engine.CmdReopenLobby}, true, nil

	case types.IntentAdminRemove:
		var d types.RemoveMember
		if err := decode(m.Data, &d); err != nil {
			return cmd, true, err
		}
		return engine.Command{Type: engine.CmdRemoveMember, TeamID: d.TeamID, EnrollmentID: d.EnrollmentNumber}, true, nil

	case types.IntentAdminUpdate:
		var d types.UpdateTeam
		if err := decode(m.Data, &d); err != nil {
			return cmd, true, err
		}
		return engine.Command{Type: engine.CmdUpdateTeam, TeamID: d.TeamID, NewName: d.Name, NewMaxSize: d.MaxSize}, true, nil

	case types.IntentAdminDelete:
		var d types.DeleteTeam
		if err := decode(m.Data, &d); err != nil {
			return cmd, true, err
		}
		return engine.Command{Type: engine.CmdDeleteTeam, TeamID: d.TeamID}, true, nil
	}
	return cmd, false, fmt.Errorf("%w: %q", errUnknownIntent, m.Type)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", engine.ErrValidation)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed data: %v", engine.ErrValidation, err)
	}
	return nil
}
