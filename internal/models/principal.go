package models

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	UserID string
	Email  string
	Name   string
}
