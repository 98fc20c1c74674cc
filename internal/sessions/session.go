package sessions

import "time"

// Grant is a refresh grant issued at login. The opaque Token is handed to
// the client and exchanged for new access tokens until ExpiresAt.
type Grant struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (g *Grant) expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
