package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile shares its ID with the identity provider subject.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:profile"`

	ID        string    `bun:"id,pk" json:"id"`
	FullName  string    `bun:"full_name,nullzero" json:"full_name,omitempty"`
	AvatarURL string    `bun:"avatar_url,nullzero" json:"avatar_url,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (p *Profile) DisplayName() string {
	if p == nil || p.FullName == "" {
		return ""
	}
	return p.FullName
}
