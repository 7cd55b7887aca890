package types

import "strings"

// LobbyStatus drives every client's navigation.
type LobbyStatus string

const (
	LobbyOpen     LobbyStatus = "OPEN"
	LobbyLocked   LobbyStatus = "LOCKED"
	LobbyStarting LobbyStatus = "STARTING"
	LobbyLive     LobbyStatus = "LIVE"
	LobbyPaused   LobbyStatus = "PAUSED"
	LobbyResults  LobbyStatus = "RESULTS"
)

// ParseLobbyStatus accepts the canonical names plus ENDED, an older alias of RESULTS.
func ParseLobbyStatus(s string) (LobbyStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN":
		return LobbyOpen, true
	case "LOCKED":
		return LobbyLocked, true
	case "STARTING":
		return LobbyStarting, true
	case "LIVE":
		return LobbyLive, true
	case "PAUSED":
		return LobbyPaused, true
	case "RESULTS", "ENDED":
		return LobbyResults, true
	default:
		return "", false
	}
}

type Phase string

const (
	PhaseBatters     Phase = "BATTERS"
	PhaseBowlers     Phase = "BOWLERS"
	PhaseAccessories Phase = "ACCESSORIES"
)

// Phases lists the auction phases in running order.
var Phases = []Phase{PhaseBatters, PhaseBowlers, PhaseAccessories}

func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Phases {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Kind tags a catalogue entry as a player or an accessory.
type Kind string

const (
	KindPlayer    Kind = "PLAYER"
	KindAccessory Kind = "ACCESSORY"
)

type ItemStatus string

const (
	ItemAvailable ItemStatus = "AVAILABLE"
	ItemSold      ItemStatus = "SOLD"
	ItemUnsold    ItemStatus = "UNSOLD"
)

type AuctionStatus string

const (
	AuctionIdle   AuctionStatus = "IDLE"
	AuctionActive AuctionStatus = "ACTIVE"
	AuctionSold   AuctionStatus = "SOLD"
	AuctionUnsold AuctionStatus = "UNSOLD"
)

type Participant struct {
	EnrollmentID string `json:"enrollmentId" yaml:"enrollmentId"`
	Name         string `json:"name" yaml:"name"`
	Phone        string `json:"phone" yaml:"phone"`
}

type Purchase struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Kind   Kind   `json:"kind"`
	Price  int64  `json:"price"`
}

type Team struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	MaxSize     int        `json:"maxSize"`
	Members     []string   `json:"members"`
	Purse       int64      `json:"purse"`
	BoughtItems []Purchase `json:"boughtItems"`
}

func (t Team) HasMember(enrollmentID string) bool {
	for _, m := range t.Members {
		if m == enrollmentID {
			return true
		}
	}
	return false
}

func (t Team) Full() bool { return len(t.Members) >= t.MaxSize }

// Clone returns a deep copy so reducers never alias slices of a previous state.
func (t Team) Clone() Team {
	out := t
	out.Members = append([]string(nil), t.Members...)
	out.BoughtItems = append([]Purchase(nil), t.BoughtItems...)
	return out
}

type LobbySettings struct {
	Status LobbyStatus `json:"status"`
}

type CatalogueEntry struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	Role            string     `json:"role" yaml:"role"`
	Kind            Kind       `json:"kind" yaml:"kind"`
	Phase           Phase      `json:"phase" yaml:"phase"`
	BasePrice       int64      `json:"basePrice" yaml:"basePrice"`
	ImportanceScore int        `json:"importanceScore" yaml:"importanceScore"`
	Status          ItemStatus `json:"status" yaml:"-"`
	WasSent         bool       `json:"wasSent" yaml:"-"`
	SoldToTeamID    string     `json:"soldToTeamId,omitempty" yaml:"-"`
	SoldPrice       int64      `json:"soldPrice,omitempty" yaml:"-"`
}

// Resolution is the outcome of the most recently closed item.
type Resolution struct {
	ItemID   string        `json:"itemId"`
	ItemName string        `json:"itemName"`
	Status   AuctionStatus `json:"status"`
	TeamID   string        `json:"teamId,omitempty"`
	TeamName string        `json:"teamName,omitempty"`
	Price    int64         `json:"price"`
}

type AuctionState struct {
	CurrentItem         *CatalogueEntry `json:"player"`
	CurrentBid          int64           `json:"currentBid"`
	HighestBidderTeamID string          `json:"highestBidderTeamId,omitempty"`
	HighestBidderName   string          `json:"highestBidder,omitempty"`
	TimerSeconds        int             `json:"timer"`
	Status              AuctionStatus   `json:"status"`
	LastResolution      *Resolution     `json:"lastSold,omitempty"`
	Phase               Phase           `json:"phase"`
	NextItemID          string          `json:"nextItemId,omitempty"`
}

// Clone deep-copies the pointer fields.
func (a AuctionState) Clone() AuctionState {
	out := a
	if a.CurrentItem != nil {
		item := *a.CurrentItem
		out.CurrentItem = &item
	}
	if a.LastResolution != nil {
		res := *a.LastResolution
		out.LastResolution = &res
	}
	return out
}
