package model

import "time"

type FactCategory string

const (
	FactWork       FactCategory = "work"
	FactPeople     FactCategory = "people"
	FactLocation   FactCategory = "location"
	FactFamily     FactCategory = "family"
	FactHealth     FactCategory = "health"
	FactPreference FactCategory = "preference"
	FactGeneral    FactCategory = "general"
)

// UserFact is a durable statement about the user, used as enrichment context.
type UserFact struct {
	ID        string       `json:"id"`
	Category  FactCategory `json:"category"`
	Fact      string       `json:"fact"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}
