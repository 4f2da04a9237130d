package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"project-sync/models"
)

func newTestJiraService(db *gorm.DB) *JiraService {
	// A zero http.Client rides http.DefaultTransport, which gock intercepts.
	return &JiraService{DB: db, HTTPClient: &http.Client{}, Email: "bot@example.org", APIToken: "token"}
}

func jiraSearchJSON(status string) map[string]interface{} {
	return map[string]interface{}{
		"startAt":    0,
		"maxResults": 50,
		"total":      1,
		"issues": []map[string]interface{}{
			{
				"id":  "10001",
				"key": "PROJ-1",
				"fields": map[string]interface{}{
					"summary":   "Login page broken",
					"issuetype": map[string]interface{}{"name": "Bug"},
					"status":    map[string]interface{}{"name": status},
					"priority":  map[string]interface{}{"name": "High"},
					"assignee": map[string]interface{}{
						"accountId":   "acc-1",
						"displayName": "Student One",
						"accountType": "atlassian",
					},
					"reporter": map[string]interface{}{
						"accountId":   "acc-2",
						"displayName": "Teacher One",
						"accountType": "atlassian",
					},
					"created": "2024-03-01T10:00:00.000+0000",
					"updated": "2024-03-02T10:00:00.000+0000",
				},
			},
		},
	}
}

func TestSyncIssuesMalformedSiteURL(t *testing.T) {
	db := setupTestDB(t)

	svc := newTestJiraService(db)

	// A placeholder site url is a configuration problem: no request is
	// sent, nothing is written, and the sync returns cleanly.
	err := svc.SyncIssues(context.Background(), "jp-1", "PROJ", "https://example.com")
	assert.NoError(t, err)

	var issueCount int64
	db.Model(&models.JiraIssue{}).Count(&issueCount)
	assert.Equal(t, int64(0), issueCount)
}

func TestSyncIssuesInvalidURL(t *testing.T) {
	db := setupTestDB(t)

	svc := newTestJiraService(db)
	assert.NoError(t, svc.SyncIssues(context.Background(), "jp-1", "PROJ", "not a url"))

	var issueCount int64
	db.Model(&models.JiraIssue{}).Count(&issueCount)
	assert.Equal(t, int64(0), issueCount)
}

func TestSyncIssuesInsertsNewIssue(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(jiraSearchJSON("To Do"))

	svc := newTestJiraService(db)
	err := svc.SyncIssues(context.Background(), "jp-1", "PROJ", "https://acme.atlassian.net")
	assert.NoError(t, err)

	var issue models.JiraIssue
	assert.NoError(t, db.Where("key = ?", "PROJ-1").First(&issue).Error)
	assert.Equal(t, "Login page broken", issue.Title)
	assert.Equal(t, "Bug", issue.IssueType)
	assert.Equal(t, "To Do", issue.Status)
	assert.NotNil(t, issue.Priority)
	assert.Equal(t, "High", *issue.Priority)
	assert.NotNil(t, issue.AssigneeID)
	assert.NotNil(t, issue.ReporterID)

	// Assignee and reporter were distinct accounts, so two actor records.
	var actorCount int64
	db.Model(&models.ExternalActor{}).Where("provider = ?", models.ProviderJira).Count(&actorCount)
	assert.Equal(t, int64(2), actorCount)
}

func TestSyncIssuesUpdatesExistingIssue(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(jiraSearchJSON("To Do"))
	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(jiraSearchJSON("Done"))

	svc := newTestJiraService(db)
	assert.NoError(t, svc.SyncIssues(context.Background(), "jp-1", "PROJ", "https://acme.atlassian.net"))
	assert.NoError(t, svc.SyncIssues(context.Background(), "jp-1", "PROJ", "https://acme.atlassian.net"))

	var issueCount int64
	db.Model(&models.JiraIssue{}).Where("key = ?", "PROJ-1").Count(&issueCount)
	assert.Equal(t, int64(1), issueCount)

	var issue models.JiraIssue
	db.Where("key = ?", "PROJ-1").First(&issue)
	assert.Equal(t, "Done", issue.Status)
}

func TestSyncIssuesProjectNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(404).
		JSON(map[string]interface{}{"errorMessages": []string{"project does not exist"}})

	svc := newTestJiraService(db)
	assert.NoError(t, svc.SyncIssues(context.Background(), "jp-1", "GONE", "https://acme.atlassian.net"))

	var issueCount int64
	db.Model(&models.JiraIssue{}).Count(&issueCount)
	assert.Equal(t, int64(0), issueCount)
}

func TestSyncIssuesNilAssignee(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	payload := jiraSearchJSON("To Do")
	fields := payload["issues"].([]map[string]interface{})[0]["fields"].(map[string]interface{})
	fields["assignee"] = nil
	fields["priority"] = nil

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(payload)

	svc := newTestJiraService(db)
	assert.NoError(t, svc.SyncIssues(context.Background(), "jp-1", "PROJ", "https://acme.atlassian.net"))

	var issue models.JiraIssue
	db.Where("key = ?", "PROJ-1").First(&issue)
	assert.Nil(t, issue.AssigneeID)
	assert.Nil(t, issue.Priority)
	assert.NotNil(t, issue.ReporterID)
}

func TestValidateProject(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/project/PROJ").
		Reply(200).
		JSON(map[string]interface{}{"id": "10000", "key": "PROJ", "name": "Course Project"})

	svc := newTestJiraService(db)
	ok, err := svc.ValidateProject(context.Background(), "PROJ", "https://acme.atlassian.net")

	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateProjectNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/project/GONE").
		Reply(404).
		JSON(map[string]interface{}{"errorMessages": []string{"no such project"}})

	svc := newTestJiraService(db)
	ok, err := svc.ValidateProject(context.Background(), "GONE", "https://acme.atlassian.net")

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateProjectPlaceholderURL(t *testing.T) {
	db := setupTestDB(t)

	svc := newTestJiraService(db)
	ok, err := svc.ValidateProject(context.Background(), "PROJ", "https://example.com")

	assert.False(t, ok)
	assert.Error(t, err)
	kind, known := models.KindOf(err)
	assert.True(t, known)
	assert.Equal(t, models.ErrKindConfig, kind)
}

func TestGetIssueCount(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(map[string]interface{}{"total": 17, "issues": []map[string]interface{}{}})

	svc := newTestJiraService(db)
	count, err := svc.GetIssueCount(context.Background(), "PROJ", "https://acme.atlassian.net", "Done")

	assert.NoError(t, err)
	assert.Equal(t, 17, count)
}

func TestGetLastUpdateDate(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(jiraSearchJSON("To Do"))

	svc := newTestJiraService(db)
	updated, err := svc.GetLastUpdateDate(context.Background(), "PROJ", "https://acme.atlassian.net")

	assert.NoError(t, err)
	assert.NotNil(t, updated)
	assert.Equal(t, 2024, updated.Year())
}

func TestGetLastUpdateDateEmptyProject(t *testing.T) {
	db := setupTestDB(t)
	defer gock.Off()

	gock.New("https://acme.atlassian.net").
		Get("/rest/api/3/search").
		Reply(200).
		JSON(map[string]interface{}{"total": 0, "issues": []map[string]interface{}{}})

	svc := newTestJiraService(db)
	updated, err := svc.GetLastUpdateDate(context.Background(), "PROJ", "https://acme.atlassian.net")

	assert.NoError(t, err)
	assert.Nil(t, updated)
}
