package resource

import "time"

// Base carries the fields every backend document has
type Base struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Identity returns the document id
func (b Base) Identity() string {
	return b.ID
}

// NoFilter is the filter of resources listed without parameters
type NoFilter struct{}

// Page selects a slice of a paginated list
type Page struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}
