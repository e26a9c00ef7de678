// Package domain contains entity without logic, just meta-data
package domain

import "time"

// CookieName is the session cookie carried by browsers.
// HTTP-only; the page scripts never see the token.
const CookieName = "mb_session"

type SessionToken string

// Session is the server-side record behind one issued token.
// The client only ever holds the token.
type Session struct {
	Token      SessionToken
	Authorized bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record is past its lifetime at the given
// instant. Expired sessions are treated as absent, not as denied.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
