// Package nav decides which screen a client shows. Clients derive the
// screen from the latest lobby and auction documents only, so every client
// that has seen the same version lands on the same screen.
package nav

import "github.com/technobid/auction-backend/pkg/types"

type Role string

const (
	RoleGuest       Role = "guest"
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

type Screen string

const (
	ScreenLogin        Screen = "login"
	ScreenLobby        Screen = "lobby"
	ScreenTeamCard     Screen = "team-card"
	ScreenCountdown    Screen = "countdown"
	ScreenArena        Screen = "arena"
	ScreenResults      Screen = "results"
	ScreenAdminHome    Screen = "admin-home"
	ScreenAdminLobby   Screen = "admin-lobby"
	ScreenAdminAuction Screen = "admin-auction"
	ScreenAdminResults Screen = "admin-results"
)

// Route is where a client belongs. Resolving is set while the arena shows a
// just-closed item.
type Route struct {
	Screen    Screen
	Paused    bool
	Resolving bool
}

var participantScreens = map[types.LobbyStatus]Screen{
	types.LobbyOpen:     ScreenLobby,
	types.LobbyLocked:   ScreenTeamCard,
	types.LobbyStarting: ScreenCountdown,
	types.LobbyLive:     ScreenArena,
	types.LobbyPaused:   ScreenArena,
	types.LobbyResults:  ScreenResults,
}

var adminScreens = map[types.LobbyStatus]Screen{
	types.LobbyOpen:     ScreenAdminLobby,
	types.LobbyLocked:   ScreenAdminLobby,
	types.LobbyStarting: ScreenAdminAuction,
	types.LobbyLive:     ScreenAdminAuction,
	types.LobbyPaused:   ScreenAdminAuction,
	types.LobbyResults:  ScreenAdminResults,
}

func Resolve(lobby types.LobbyStatus, auction types.AuctionState, role Role) Route {
	var screens map[types.LobbyStatus]Screen
	fallback := ScreenLogin
	switch role {
	case RoleParticipant:
		screens = participantScreens
	case RoleAdmin:
		screens, fallback = adminScreens, ScreenAdminHome
	default:
		return Route{Screen: ScreenLogin}
	}

	screen, ok := screens[lobby]
	if !ok {
		return Route{Screen: fallback}
	}
	r := Route{Screen: screen, Paused: lobby == types.LobbyPaused}
	if screen == ScreenArena {
		r.Resolving = auction.Status == types.AuctionSold || auction.Status == types.AuctionUnsold
	}
	return r
}
