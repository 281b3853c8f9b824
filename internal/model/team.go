package model

import "time"

// TeamStatus is the team formation lifecycle state.
type TeamStatus string

const (
	TeamForming TeamStatus = "FORMING"
	// TeamComplete is transient and never stored: the join that fills the
	// team registers every accepted member in the same transaction, so the
	// row goes FORMING→REGISTERED directly.
	TeamComplete   TeamStatus = "COMPLETE"
	TeamRegistered TeamStatus = "REGISTERED"
	TeamCancelled  TeamStatus = "CANCELLED"
)

// Active reports whether the team blocks its members from other teams or
// individual registrations for the same event.
func (s TeamStatus) Active() bool { return s != TeamCancelled }

// MemberStatus is a member's response to a team invite.
type MemberStatus string

const (
	MemberPending  MemberStatus = "PENDING"
	MemberAccepted MemberStatus = "ACCEPTED"
	MemberDeclined MemberStatus = "DECLINED"
)

// TeamMember is one participant's membership in a team. The leader is
// auto-accepted at creation.
type TeamMember struct {
	UserID   string       `json:"user_id"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
}

// Team groups participants for a single event registration.
type Team struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	LeaderID string `json:"leader_id"`

	// TeamSize is the target accepted-member count, within the event's
	// min/max team size bounds.
	TeamSize int `json:"team_size"`

	// InviteCode is generated once at creation and globally unique.
	InviteCode string `json:"invite_code"`

	Status    TeamStatus   `json:"status"`
	Members   []TeamMember `json:"members"`
	FormData  JSONMap      `json:"form_data,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// AcceptedCount returns the number of accepted members.
func (t *Team) AcceptedCount() int {
	n := 0
	for _, m := range t.Members {
		if m.Status == MemberAccepted {
			n++
		}
	}
	return n
}

// AcceptedMembers returns the accepted members in join order.
func (t *Team) AcceptedMembers() []TeamMember {
	var out []TeamMember
	for _, m := range t.Members {
		if m.Status == MemberAccepted {
			out = append(out, m)
		}
	}
	return out
}

// HasMember reports whether the user appears in the member list at all.
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
