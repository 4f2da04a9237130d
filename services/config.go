package services

import (
	"os"
	"strconv"
	"time"
)

// IsTestMode disables outbound side effects (slack notifications) in tests.
var IsTestMode bool

// GithubToken returns the API token used for GitHub requests. An empty
// token means unauthenticated access.
func GithubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// JiraCredentials returns the email + API token pair for Jira basic auth.
func JiraCredentials() (email, token string) {
	return os.Getenv("JIRA_EMAIL"), os.Getenv("JIRA_API_TOKEN")
}

// SyncInterval is how often the scheduler sweeps all active integrations.
func SyncInterval() time.Duration {
	if v, err := strconv.Atoi(os.Getenv("SYNC_INTERVAL_MINUTES")); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return 10 * time.Minute
}

// CommitPageSize is the provider page size used when listing commits.
func CommitPageSize() int {
	if v, err := strconv.Atoi(os.Getenv("COMMIT_PAGE_SIZE")); err == nil && v > 0 && v <= 100 {
		return v
	}
	return 100
}

// JiraMaxResults caps one Jira search page.
func JiraMaxResults() int {
	if v, err := strconv.Atoi(os.Getenv("JIRA_MAX_RESULTS")); err == nil && v > 0 {
		return v
	}
	return 50
}

// ProviderTimeout bounds every provider HTTP round trip. A timeout is
// treated like any other transport failure.
func ProviderTimeout() time.Duration {
	if v, err := strconv.Atoi(os.Getenv("PROVIDER_TIMEOUT_SECONDS")); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return 30 * time.Second
}
