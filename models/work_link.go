package models

import (
	"time"
)

// GitHub artifact kinds a Jira issue can be linked to.
const (
	ArtifactCommit      = "commit"
	ArtifactPullRequest = "pull_request"
	ArtifactBranch      = "branch"
)

// Link detection sources.
const (
	LinkTypeCommitMessage = "commit_message"
	LinkTypeBranchName    = "branch_name"
)

// WorkLink associates one Jira issue with one GitHub artifact inside one
// repository. A (issue, repository, artifact type, ref, link type) tuple is
// recorded at most once, and links are append-only: history matters for
// audit, so a link is never silently dropped. The repository is part of the
// key because the same ref (a sha, a branch name) can exist in more than
// one repository.
type WorkLink struct {
	ID           string `gorm:"primaryKey"`
	JiraIssueID  string `gorm:"index:idx_issue_artifact,unique"`
	RepositoryID string `gorm:"index:idx_issue_artifact,unique"`
	ArtifactType string `gorm:"index:idx_issue_artifact,unique"`
	ArtifactRef  string `gorm:"index:idx_issue_artifact,unique"` // sha, PR number or branch name
	LinkType     string `gorm:"index:idx_issue_artifact,unique"`
	CreatedAt    time.Time
}
