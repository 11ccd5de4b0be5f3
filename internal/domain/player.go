// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxPlayerIDLen = 36
	MaxNameLen     = 36
	MaxAvatarLen   = 256
)

var (
	ErrNameTooLong = errors.New("name too long")
	ErrNameEmpty   = errors.New("name empty")
)

// PlayerID is server-issued and survives reconnects through a resume token.
type PlayerID string

func NewPlayerID() PlayerID { return PlayerID(uuid.NewString()) }

// Profile is the optional presentation data a client sends on JOIN.
type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NewProfile avoids ad-hoc struct literals in adapters.
func NewProfile(name, avatar string) (*Profile, error) {
	p := &Profile{}
	if err := p.SetName(name); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(avatar) > MaxAvatarLen {
		avatar = string([]rune(avatar)[:MaxAvatarLen])
	}
	p.Avatar = avatar
	return p, nil
}

func (p *Profile) SetName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return ErrNameTooLong
	}
	p.Name = name
	return nil
}
