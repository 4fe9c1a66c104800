package models

import "github.com/uptrace/bun"

// Category is seeded by migrations and never written by the application.
type Category struct {
	bun.BaseModel `bun:"table:event_categories,alias:category"`

	ID          string `bun:"id,pk" json:"id"`
	Name        string `bun:"name,unique,notnull" json:"name"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`
	Color       string `bun:"color,notnull" json:"color"`
	Icon        string `bun:"icon,notnull" json:"icon"`
}

// CategoryWithCount pairs a category with its number of upcoming active events.
type CategoryWithCount struct {
	Category
	EventCount int `json:"event_count"`
}
