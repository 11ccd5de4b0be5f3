package domain

import "time"

// Member represents a player's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	ID       PlayerID
	Profile  *Profile
	Ready    bool
	JoinedAt time.Time
}

func NewMember(id PlayerID, profile *Profile) *Member {
	return &Member{ID: id, Profile: profile, JoinedAt: time.Now()}
}

// Name falls back to the player id when no profile was sent.
func (m *Member) Name() string {
	if m.Profile != nil && m.Profile.Name != "" {
		return m.Profile.Name
	}
	return string(m.ID)
}
