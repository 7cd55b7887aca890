package types

import "encoding/json"

// Client -> Server intents on the event channel.
const (
	IntentRegisterUser    = "REGISTER_USER"
	IntentRequestTeams    = "requestTeams"
	IntentRequestSnapshot = "requestSnapshot"
	IntentCreateTeam      = "createTeam"
	IntentJoinTeam        = "joinTeam"
	IntentAdminLock       = "adminLockTeams"
	IntentAdminReopen     = "adminReopenTeams"
	IntentAdminRemove     = "adminRemoveMember"
	IntentAdminUpdate     = "adminUpdateTeam"
	IntentAdminDelete     = "adminDeleteTeam"
)

// Server -> Client events on the event channel.
const (
	EventTeamsUpdated = "teamsUpdated"
	EventOnlineUpdate = "onlineParticipantsUpdate"
	EventSocketError  = "socketError"
	EventErrorMessage = "errorMessage"
	EventAck          = "ack"
	EventSnapshot     = "snapshot"
	EventDocument     = "document"
)

// ClientMessage is one intent. Admin intents carry the bearer token issued by
// POST /api/admin/login.
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Token     string          `json:"token,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is what the server writes; Data holds one of the payloads below.
type ServerMessage struct {
	Type      string `json:"type"`
	Version   uint64 `json:"version,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Envelope is the decoding side of ServerMessage.
type Envelope struct {
	Type      string          `json:"type"`
	Version   uint64          `json:"version,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type RegisterUser struct {
	EnrollmentID string `json:"enrollmentId"`
	Enrollment   string `json:"enrollment,omitempty"`
}

// ID prefers enrollmentId and falls back to the shorter field older clients send.
func (r RegisterUser) ID() string {
	if r.EnrollmentID != "" {
		return r.EnrollmentID
	}
	return r.Enrollment
}

type CreateTeam struct {
	Name                string `json:"name"`
	MaxSize             int    `json:"maxSize"`
	CreatorEnrollmentID string `json:"creatorEnrollmentId"`
}

type JoinTeam struct {
	TeamID     string `json:"teamId"`
	Enrollment string `json:"enrollment"`
}

type RemoveMember struct {
	TeamID           string `json:"teamId"`
	EnrollmentNumber string `json:"enrollmentNumber"`
}

type UpdateTeam struct {
	TeamID  string  `json:"teamId"`
	Name    *string `json:"name,omitempty"`
	MaxSize *int    `json:"maxSize,omitempty"`
}

type DeleteTeam struct {
	TeamID string `json:"teamId"`
}

type TeamsUpdated struct {
	Teams  []Team `json:"teams"`
	Locked bool   `json:"locked"`
}

type OnlineParticipants struct {
	EnrollmentIDs []string `json:"enrollmentIds"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Ack answers exactly one ClientMessage, matched by RequestID.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Class   string `json:"class,omitempty"`
	// TeamID is set on a successful createTeam.
	TeamID string `json:"teamId,omitempty"`
}

// ClassAuth marks acks and HTTP errors caused by a missing or bad admin token.
const ClassAuth = "auth"

type Snapshot struct {
	Documents []Document `json:"documents"`
}

// HTTP bodies.

type MessageResponse struct {
	Message string `json:"message"`
	Version uint64 `json:"version,omitempty"`
	Class   string `json:"class,omitempty"`
}

type SelectItemRequest struct {
	PlayerID string `json:"playerId"`
}

type ChangePhaseRequest struct {
	Phase string `json:"phase"`
}

type BidRequest struct {
	TeamID string `json:"teamId"`
}

type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type PlayersResponse struct {
	Players []CatalogueEntry `json:"players"`
}

// Standing is one row of the results leaderboard.
type Standing struct {
	Team        Team  `json:"team"`
	TotalScore  int   `json:"totalScore"`
	Spent       int64 `json:"spent"`
	Players     int   `json:"players"`
	Accessories int   `json:"accessories"`
}

type ResultsResponse struct {
	Standings []Standing `json:"standings"`
}
