package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-sync/models"
)

// JiraService pulls issues for one linked Jira project over the v3 REST API
// and reconciles them into the local store. Authentication is HTTP basic
// with email + API token.
type JiraService struct {
	DB         *gorm.DB
	HTTPClient *http.Client
	Email      string
	APIToken   string
}

func NewJiraService(db *gorm.DB) *JiraService {
	email, token := JiraCredentials()
	return &JiraService{
		DB:         db,
		HTTPClient: &http.Client{Timeout: ProviderTimeout()},
		Email:      email,
		APIToken:   token,
	}
}

// Wire shapes for the slice of the Jira API this service reads.
type jiraUser struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	AccountType string `json:"accountType"`
}

type jiraNamed struct {
	Name string `json:"name"`
}

type jiraIssueFields struct {
	Summary   string     `json:"summary"`
	IssueType jiraNamed  `json:"issuetype"`
	Status    jiraNamed  `json:"status"`
	Priority  *jiraNamed `json:"priority"`
	Assignee  *jiraUser  `json:"assignee"`
	Reporter  *jiraUser  `json:"reporter"`
	Created   string     `json:"created"`
	Updated   string     `json:"updated"`
}

type jiraIssue struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields jiraIssueFields `json:"fields"`
}

type jiraSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

type jiraProject struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// validateSiteURL rejects malformed or placeholder site URLs before any
// request is sent, so a misconfigured integration never shows up as a
// network fault.
func validateSiteURL(siteURL string) error {
	u, err := url.Parse(siteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewSyncError(models.ErrKindConfig, "jira site url %q is not a valid http(s) url", siteURL)
	}

	host := strings.ToLower(u.Hostname())
	if host == "example.com" || strings.HasSuffix(host, ".example.com") ||
		strings.Contains(host, "your-domain") {
		return models.NewSyncError(models.ErrKindConfig, "jira site url %q looks like a placeholder", siteURL)
	}
	return nil
}

// getJSON issues one authenticated GET and decodes the body into out.
// Transient failures (5xx, timeouts) are retried a few times with constant
// backoff; everything else fails immediately with its kind attached.
func (s *JiraService) getJSON(ctx context.Context, rawURL string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(models.NewSyncError(models.ErrKindConfig, "bad jira request url %q: %v", rawURL, err))
		}
		if s.Email != "" && s.APIToken != "" {
			req.SetBasicAuth(s.Email, s.APIToken)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.HTTPClient.Do(req)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				// Unresolvable host reads as a misconfigured site url, not
				// a provider fault.
				return backoff.Permanent(models.NewSyncError(models.ErrKindConfig, "jira host unresolvable: %v", err))
			}
			return models.NewSyncError(models.ErrKindTransport, "jira request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(models.NewSyncError(models.ErrKindNotFound, "jira returned 404 for %s", rawURL))
		}
		if resp.StatusCode >= 500 {
			return models.NewSyncError(models.ErrKindHTTP, "jira returned %d for %s", resp.StatusCode, rawURL)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(models.NewSyncError(models.ErrKindHTTP, "jira returned %d for %s", resp.StatusCode, rawURL))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return models.NewSyncError(models.ErrKindTransport, "jira response read failed: %v", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(models.NewSyncError(models.ErrKindHTTP, "jira response is not valid json: %v", err))
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2)
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// ValidateProject probes the project once. A non-2xx answer means false
// without an error; a malformed site url is a config error.
func (s *JiraService) ValidateProject(ctx context.Context, key, siteURL string) (bool, error) {
	if err := validateSiteURL(siteURL); err != nil {
		return false, err
	}

	var project jiraProject
	probeURL := fmt.Sprintf("%s/rest/api/3/project/%s", strings.TrimRight(siteURL, "/"), url.PathEscape(key))
	err := s.getJSON(ctx, probeURL, &project)
	if err != nil {
		kind, ok := models.KindOf(err)
		if ok && (kind == models.ErrKindNotFound || kind == models.ErrKindHTTP) {
			return false, nil
		}
		return false, err
	}
	return project.Key == key, nil
}

// SyncIssues fetches the most recently updated issues of the project and
// upserts them by issue key in one batch. Configuration problems and
// provider-side HTTP failures are logged and absorbed; only genuine
// transport faults propagate.
func (s *JiraService) SyncIssues(ctx context.Context, jiraProjectID, key, siteURL string) error {
	if err := validateSiteURL(siteURL); err != nil {
		log.Printf("jira sync skipped for project %s: %v", key, err)
		return nil
	}

	jql := fmt.Sprintf("project = %s ORDER BY updated DESC", key)
	searchURL := fmt.Sprintf("%s/rest/api/3/search?jql=%s&maxResults=%d",
		strings.TrimRight(siteURL, "/"), url.QueryEscape(jql), JiraMaxResults())

	var result jiraSearchResponse
	if err := s.getJSON(ctx, searchURL, &result); err != nil {
		kind, ok := models.KindOf(err)
		switch {
		case ok && kind == models.ErrKindNotFound:
			log.Printf("jira project %s not found at %s, skipping issue sync", key, siteURL)
			return nil
		case ok && kind == models.ErrKindConfig:
			log.Printf("jira sync skipped for project %s: %v", key, err)
			return nil
		case ok && kind == models.ErrKindHTTP:
			log.Printf("jira issue search failed for project %s: %v", key, err)
			return nil
		default:
			return err
		}
	}

	uow := NewUnitOfWork(s.DB)
	issueStore := NewStore[models.JiraIssue](uow)
	resolver := NewActorResolver(uow)

	for _, issue := range result.Issues {
		if issue.Key == "" {
			continue
		}

		assigneeID, err := s.resolveAccount(resolver, issue.Fields.Assignee)
		if err != nil {
			uow.Rollback()
			return err
		}
		reporterID, err := s.resolveAccount(resolver, issue.Fields.Reporter)
		if err != nil {
			uow.Rollback()
			return err
		}

		var priority *string
		if issue.Fields.Priority != nil {
			p := issue.Fields.Priority.Name
			priority = &p
		}

		existing, err := issueStore.FirstOrDefault("key = ?", issue.Key)
		if err != nil {
			uow.Rollback()
			return err
		}

		if existing != nil {
			existing.Title = issue.Fields.Summary
			existing.IssueType = issue.Fields.IssueType.Name
			existing.Status = issue.Fields.Status.Name
			existing.Priority = priority
			existing.AssigneeID = assigneeID
			existing.ReporterID = reporterID
			existing.RemoteUpdatedAt = parseJiraTime(issue.Fields.Updated)
			issueStore.Update(existing)
			continue
		}

		issueStore.Add(&models.JiraIssue{
			ID:              uuid.NewString(),
			Key:             issue.Key,
			JiraProjectID:   jiraProjectID,
			Title:           issue.Fields.Summary,
			IssueType:       issue.Fields.IssueType.Name,
			Status:          issue.Fields.Status.Name,
			Priority:        priority,
			AssigneeID:      assigneeID,
			ReporterID:      reporterID,
			RemoteCreatedAt: parseJiraTime(issue.Fields.Created),
			RemoteUpdatedAt: parseJiraTime(issue.Fields.Updated),
		})
	}

	if err := uow.SaveChanges(); err != nil {
		return err
	}

	if len(result.Issues) > 0 {
		log.Printf("synced %d issues for jira project %s", len(result.Issues), key)
	}
	return nil
}

// GetIssueCount reports how many issues the project has, optionally
// restricted to one status. Read-only.
func (s *JiraService) GetIssueCount(ctx context.Context, key, siteURL, status string) (int, error) {
	if err := validateSiteURL(siteURL); err != nil {
		return 0, err
	}

	jql := fmt.Sprintf("project = %s", key)
	if status != "" {
		jql += fmt.Sprintf(" AND status = %q", status)
	}
	searchURL := fmt.Sprintf("%s/rest/api/3/search?jql=%s&maxResults=0",
		strings.TrimRight(siteURL, "/"), url.QueryEscape(jql))

	var result jiraSearchResponse
	if err := s.getJSON(ctx, searchURL, &result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

// GetLastUpdateDate returns when any issue of the project last changed, or
// nil for an empty project. Read-only.
func (s *JiraService) GetLastUpdateDate(ctx context.Context, key, siteURL string) (*time.Time, error) {
	if err := validateSiteURL(siteURL); err != nil {
		return nil, err
	}

	jql := fmt.Sprintf("project = %s ORDER BY updated DESC", key)
	searchURL := fmt.Sprintf("%s/rest/api/3/search?jql=%s&maxResults=1",
		strings.TrimRight(siteURL, "/"), url.QueryEscape(jql))

	var result jiraSearchResponse
	if err := s.getJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}
	if len(result.Issues) == 0 {
		return nil, nil
	}

	updated := parseJiraTime(result.Issues[0].Fields.Updated)
	return &updated, nil
}

func (s *JiraService) resolveAccount(resolver *ActorResolver, account *jiraUser) (*string, error) {
	if account == nil || account.AccountID == "" {
		return nil, nil
	}

	actorType := models.ActorTypeUser
	if account.AccountType == "app" {
		actorType = models.ActorTypeBot
	}

	id, err := resolver.EnsureActor(models.ProviderJira, account.AccountID,
		account.AccountID, account.DisplayName, actorType)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Jira timestamps look like "2024-03-05T14:21:07.000+0100".
func parseJiraTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999-0700", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
