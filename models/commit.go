package models

import (
	"time"
)

// Commit is immutable once observed: a later sync never re-inserts or
// mutates a stored commit. The (repository, sha) pair is the natural key.
type Commit struct {
	ID           string `gorm:"primaryKey"`
	RepositoryID string `gorm:"index:idx_repo_sha,unique"`
	SHA          string `gorm:"index:idx_repo_sha,unique"`
	Message      string
	AuthorID     *string // nil when the provider omits the author
	CommitterID  *string
	CommittedAt  time.Time
	Additions    *int // nil when change-size stats could not be fetched
	Deletions    *int
	CreatedAt    time.Time
}

// PullRequest is keyed by (repository, number). State, title and the
// lifecycle timestamps are refreshed on every sync; the number never moves.
type PullRequest struct {
	ID              string `gorm:"primaryKey"`
	RepositoryID    string `gorm:"index:idx_repo_number,unique"`
	Number          int    `gorm:"index:idx_repo_number,unique"`
	Title           string
	State           string // "open", "closed"
	AuthorID        *string
	HeadBranch      string
	BaseBranch      string
	GithubCreatedAt time.Time
	GithubUpdatedAt time.Time
	ClosedAt        *time.Time
	MergedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
