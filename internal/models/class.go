package models

import "time"

// ClassType groups the course catalogue.
type ClassType string

const (
	ClassTypeCPR      ClassType = "cpr"
	ClassTypeFirstAid ClassType = "first_aid"
	ClassTypeBLS      ClassType = "bls"
	ClassTypeCombo    ClassType = "cpr_first_aid"
)

// Class is a catalogue entry; sessions are scheduled instances of it.
type Class struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Type           ClassType `db:"type" json:"type"`
	Audience       string    `db:"audience" json:"audience"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
	DurationOnline string    `db:"duration_online" json:"duration_online,omitempty"`
	DurationSkills string    `db:"duration_skills" json:"duration_skills,omitempty"`
	Description    string    `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
