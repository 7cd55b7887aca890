// Package client is the reference client: it follows both realtime feeds,
// keeps a version-ordered view of the documents and resolves the screen a
// session should show.
package client

import (
	"github.com/technobid/auction-backend/pkg/nav"
)

// Session is who the client speaks for. It is passed explicitly rather than
// read from ambient storage.
type Session struct {
	Role         nav.Role
	EnrollmentID string
	// Token authorizes admin intents.
	Token string
}

func Guest() Session { return Session{Role: nav.RoleGuest} }

func Participant(enrollmentID string) Session {
	return Session{Role: nav.RoleParticipant, EnrollmentID: enrollmentID}
}

func Admin(token string) Session { return Session{Role: nav.RoleAdmin, Token: token} }

// Route resolves the screen for this session from the view.
func (s Session) Route(v *View) nav.Route {
	return nav.Resolve(v.Lobby(), v.Auction(), s.Role)
}
