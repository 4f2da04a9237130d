package models

import (
	"time"

	"gorm.io/gorm"
)

// Sync outcome recorded on an integration after every attempt.
const (
	SyncStatusSuccess = "SUCCESS"
	SyncStatusError   = "ERROR"
	SyncStatusPending = "PENDING"
)

// Integration binds one internal project to at most one external repository
// and at most one Jira project. It is never hard-deleted while the project
// exists; deactivation is soft state only.
type Integration struct {
	ID            string  `gorm:"primaryKey"`
	ProjectID     string  `gorm:"uniqueIndex"`
	RepositoryID  *string // set when a GitHub repository is linked
	JiraProjectID *string // set when a Jira project is linked
	LastSyncedAt  *time.Time
	LastStatus    string // "SUCCESS", "ERROR", "PENDING"
	LastError     string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// ExternalRepository identifies a GitHub repository by owner and name.
// GithubID stays nil until the first successful validation; once known it
// must match on every later sync, a mismatch means the repository identity
// changed and is a hard error.
type ExternalRepository struct {
	ID            string `gorm:"primaryKey"`
	Owner         string `gorm:"index:idx_owner_name,unique"`
	Name          string `gorm:"index:idx_owner_name,unique"`
	GithubID      *int64
	DefaultBranch string
	Private       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// JiraProjectLink identifies a Jira project by key and site URL.
type JiraProjectLink struct {
	ID        string `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex"`
	SiteURL   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
