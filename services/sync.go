package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"project-sync/models"
)

// SyncService drives synchronization across all active integrations. It is
// the only component that initiates a sync on its own; "Sync Now" requests
// funnel through SyncIntegration as well, so both paths share one set of
// semantics.
type SyncService struct {
	DB       *gorm.DB
	Github   *GithubService
	Jira     *JiraService
	Notifier *SlackNotifier

	mu       sync.Mutex
	inflight map[string]bool
}

func NewSyncService(db *gorm.DB) *SyncService {
	return &SyncService{
		DB:       db,
		Github:   NewGithubService(db),
		Jira:     NewJiraService(db),
		Notifier: NewSlackNotifier(),
		inflight: make(map[string]bool),
	}
}

// RunScheduler sweeps all active integrations on a fixed interval until the
// context is cancelled. Started from main as a background goroutine.
func (s *SyncService) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.SyncAll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("sync scheduler stopped")
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every active integration. Each integration runs in its own
// goroutine and records its own outcome, so one failing integration never
// aborts the others.
func (s *SyncService) SyncAll(ctx context.Context) {
	var integrations []models.Integration
	if err := s.DB.Where("is_active = ?", true).Find(&integrations).Error; err != nil {
		log.Printf("integration lookup failed: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, integration := range integrations {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.SyncIntegration(ctx, id); err != nil && err != models.ErrSyncInFlight {
				log.Printf("sync failed for integration %s: %v", id, err)
			}
		}(integration.ID)
	}
	wg.Wait()
}

// SyncIntegration runs one full sync for one integration and persists the
// outcome on the record. At most one sync per integration is in flight at a
// time; a second request while one is running returns ErrSyncInFlight.
func (s *SyncService) SyncIntegration(ctx context.Context, integrationID string) error {
	if !s.tryAcquire(integrationID) {
		return models.ErrSyncInFlight
	}
	defer s.release(integrationID)

	var integration models.Integration
	if err := s.DB.First(&integration, "id = ?", integrationID).Error; err != nil {
		return err
	}

	s.DB.Model(&integration).Update("last_status", models.SyncStatusPending)

	syncErr := s.runProviders(ctx, &integration)

	now := time.Now()
	integration.LastSyncedAt = &now
	if syncErr != nil {
		integration.LastStatus = models.SyncStatusError
		integration.LastError = syncErr.Error()
		s.Notifier.NotifySyncFailure(ctx, &integration, syncErr)
	} else {
		integration.LastStatus = models.SyncStatusSuccess
		integration.LastError = ""
	}

	if err := s.DB.Save(&integration).Error; err != nil {
		log.Printf("integration status update failed for %s: %v", integrationID, err)
	}
	return syncErr
}

// runProviders performs the provider calls for one integration. Absent
// resources and provider-side HTTP failures are absorbed here; transport
// faults and identity conflicts bubble up so the integration lands in ERROR.
func (s *SyncService) runProviders(ctx context.Context, integration *models.Integration) error {
	if integration.RepositoryID != nil {
		var repo models.ExternalRepository
		if err := s.DB.First(&repo, "id = ?", *integration.RepositoryID).Error; err != nil {
			return err
		}

		if err := s.Github.EnsureRepositoryIdentity(ctx, &repo); err != nil {
			kind, ok := models.KindOf(err)
			switch {
			case ok && kind == models.ErrKindNotFound:
				// Stale or mistyped repository reference, not a systemic fault.
				log.Printf("repository %s/%s not found, skipping github sync", repo.Owner, repo.Name)
			case ok && kind == models.ErrKindHTTP:
				log.Printf("github rejected identity check for %s/%s: %v", repo.Owner, repo.Name, err)
			default:
				return err
			}
		} else {
			if err := s.Github.SyncCommits(ctx, repo.ID, repo.Owner, repo.Name); err != nil {
				return err
			}
			if err := s.Github.SyncPullRequests(ctx, repo.ID, repo.Owner, repo.Name); err != nil {
				return err
			}
		}
	}

	if integration.JiraProjectID != nil {
		var project models.JiraProjectLink
		if err := s.DB.First(&project, "id = ?", *integration.JiraProjectID).Error; err != nil {
			return err
		}
		if err := s.Jira.SyncIssues(ctx, project.ID, project.Key, project.SiteURL); err != nil {
			return err
		}
	}

	return nil
}

func (s *SyncService) tryAcquire(integrationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[integrationID] {
		return false
	}
	s.inflight[integrationID] = true
	return true
}

func (s *SyncService) release(integrationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, integrationID)
}
