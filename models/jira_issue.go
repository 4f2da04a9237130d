package models

import (
	"time"
)

// JiraIssue is keyed by its issue key, which is unique across the install
// and immutable once created. Status, priority and title move on every sync.
type JiraIssue struct {
	ID              string `gorm:"primaryKey"`
	Key             string `gorm:"uniqueIndex"`
	JiraProjectID   string `gorm:"index"`
	Title           string
	IssueType       string
	Status          string
	Priority        *string // nil when the provider omits it
	AssigneeID      *string
	ReporterID      *string
	RemoteCreatedAt time.Time
	RemoteUpdatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
