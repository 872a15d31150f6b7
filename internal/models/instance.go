package models

import "time"

// UserSession is one continuous join-to-leave presence interval for one
// user within one instance. LeftAt is nil when no leave was observed
// (user still present at log end, or the log was truncated).
type UserSession struct {
	Username string     `json:"username"`
	UserID   string     `json:"userId,omitempty"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

// Closed reports whether a leave was observed for this session.
func (s *UserSession) Closed() bool {
	return s.LeftAt != nil
}

// Instance is one VRChat multiplayer world room, bounded by enter/exit
// log records. ExitedAt is nil when the log ended inside the instance.
// A username may appear in Users multiple times: each join/leave cycle
// is a distinct UserSession.
type Instance struct {
	ID        string        `json:"id"` // world id, e.g. wrld_…
	Name      string        `json:"name,omitempty"`
	EnteredAt time.Time     `json:"enteredAt"`
	ExitedAt  *time.Time    `json:"exitedAt,omitempty"`
	Users     []UserSession `json:"users"`
}
