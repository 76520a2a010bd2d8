package models

import "time"

type CaseStatus string

const (
	CaseStatusActive CaseStatus = "active"
	CaseStatusSolved CaseStatus = "solved"
)

// Case is the persisted form of a GameState owned by exactly one user.
type Case struct {
	ID        string     `db:"id"`
	UserID    []byte     `db:"user_id"`
	State     GameState  `db:"state"`
	Status    CaseStatus `db:"status"`
	Title     string     `db:"title"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// CaseSummary is the dashboard projection of a Case without the state blob.
type CaseSummary struct {
	ID        string     `db:"id" json:"id"`
	Status    CaseStatus `db:"status" json:"status"`
	Title     string     `db:"title" json:"title"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}
