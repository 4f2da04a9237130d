package models

import (
	"time"
)

// Providers an actor can originate from.
const (
	ProviderGithub = "github"
	ProviderJira   = "jira"
)

const (
	ActorTypeUser = "user"
	ActorTypeBot  = "bot"
)

// ExternalActor is the single local record for an externally identified
// actor (a GitHub login, a Jira account id). Exactly one record exists per
// (provider, external id); resolution is create-if-absent, never merge.
type ExternalActor struct {
	ID          string `gorm:"primaryKey"`
	Provider    string `gorm:"index:idx_provider_external,unique"`
	ExternalID  string `gorm:"index:idx_provider_external,unique"`
	Login       string
	DisplayName string
	Type        string // "user" or "bot"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
