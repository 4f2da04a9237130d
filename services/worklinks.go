package services

import (
	"regexp"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-sync/models"
)

// Jira issue keys as they appear in commit messages and branch names,
// e.g. "PROJ-123: fix login" or "feature/PROJ-123-login".
var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// ExtractIssueKeys returns the distinct Jira issue keys found in text, in
// order of first appearance.
func ExtractIssueKeys(text string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, key := range issueKeyPattern.FindAllString(text, -1) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// RecordLink stores the association between a Jira issue and a GitHub
// artifact. A given (issue, repository, artifact type, ref, link type)
// tuple is recorded at most once; recording it again is a no-op. The same
// ref in a different repository is a different artifact and gets its own
// link.
func RecordLink(db *gorm.DB, issueID, repositoryID, artifactType, artifactRef, linkType string) error {
	link := models.WorkLink{
		JiraIssueID:  issueID,
		RepositoryID: repositoryID,
		ArtifactType: artifactType,
		ArtifactRef:  artifactRef,
		LinkType:     linkType,
	}
	return db.Where(&link).
		Attrs(models.WorkLink{ID: uuid.NewString()}).
		FirstOrCreate(&link).Error
}

// LinksForIssue returns every recorded link for one Jira issue.
func LinksForIssue(db *gorm.DB, issueID string) ([]models.WorkLink, error) {
	var links []models.WorkLink
	err := db.Where("jira_issue_id = ?", issueID).Order("created_at").Find(&links).Error
	return links, err
}

// LinksForArtifact returns every recorded link for one GitHub artifact in
// one repository.
func LinksForArtifact(db *gorm.DB, repositoryID, artifactRef string) ([]models.WorkLink, error) {
	var links []models.WorkLink
	err := db.Where("repository_id = ? AND artifact_ref = ?", repositoryID, artifactRef).
		Order("created_at").Find(&links).Error
	return links, err
}

// stageDetectedLinks scans text for issue keys and stages a work link for
// every key that already has a local issue record. Unknown keys are skipped:
// link detection never creates issues.
func stageDetectedLinks(uow *UnitOfWork, repositoryID, artifactType, artifactRef, linkType, text string) error {
	for _, key := range ExtractIssueKeys(text) {
		var issue models.JiraIssue
		err := uow.DB().Where("key = ?", key).First(&issue).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return err
		}

		issueID := issue.ID
		uow.Stage(func(tx *gorm.DB) error {
			return RecordLink(tx, issueID, repositoryID, artifactType, artifactRef, linkType)
		})
	}
	return nil
}
