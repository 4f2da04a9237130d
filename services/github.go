package services

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v71/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"project-sync/models"
)

// GithubService pulls commits and pull requests for one linked repository
// and reconciles them into the local store. The client is injected so tests
// can point it at a mocked transport.
type GithubService struct {
	DB     *gorm.DB
	Client *github.Client
}

func NewGithubService(db *gorm.DB) *GithubService {
	return &GithubService{DB: db, Client: NewGithubClient()}
}

// NewGithubClient builds a GitHub client from the configured token, or an
// unauthenticated one when no token is set.
func NewGithubClient() *github.Client {
	token := GithubToken()
	if token == "" {
		log.Println("GITHUB_TOKEN is not set, using unauthenticated client")
		return github.NewClient(&http.Client{Timeout: ProviderTimeout()})
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = ProviderTimeout()
	return github.NewClient(tc)
}

// ValidateRepository probes the repository once. Any non-2xx response,
// including 404, means "not usable" and returns false without an error; an
// error is reported only when the request itself failed.
func (s *GithubService) ValidateRepository(ctx context.Context, owner, name string) (bool, error) {
	_, resp, err := s.Client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil {
			return false, nil
		}
		return false, models.NewSyncError(models.ErrKindTransport, "github repository probe failed: %v", err)
	}
	return true, nil
}

// EnsureRepositoryIdentity fetches the repository, records its numeric
// provider id on first sight, and fails hard when a known id no longer
// matches: that means the (owner, name) pair now points at a different
// repository. Default branch and visibility are refreshed as a side effect.
func (s *GithubService) EnsureRepositoryIdentity(ctx context.Context, repo *models.ExternalRepository) error {
	remote, resp, err := s.Client.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return models.NewSyncError(models.ErrKindNotFound, "repository %s/%s not found", repo.Owner, repo.Name)
		}
		if resp != nil {
			return models.NewSyncError(models.ErrKindHTTP, "github returned %d for %s/%s", resp.StatusCode, repo.Owner, repo.Name)
		}
		return models.NewSyncError(models.ErrKindTransport, "github request failed for %s/%s: %v", repo.Owner, repo.Name, err)
	}

	remoteID := remote.GetID()
	if repo.GithubID != nil && *repo.GithubID != remoteID {
		return models.NewSyncError(models.ErrKindIdentityConflict,
			"repository %s/%s changed identity: known id %d, provider reports %d",
			repo.Owner, repo.Name, *repo.GithubID, remoteID)
	}

	repo.GithubID = &remoteID
	repo.DefaultBranch = remote.GetDefaultBranch()
	repo.Private = remote.GetPrivate()
	return s.DB.Save(repo).Error
}

// SyncCommits fetches one page of the most recent commits and inserts the
// ones not seen before, with their authors resolved, as a single batch. An
// empty page is not an error, and re-running against unchanged provider
// state writes nothing.
func (s *GithubService) SyncCommits(ctx context.Context, repositoryID, owner, name string) error {
	commits, resp, err := s.Client.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: CommitPageSize()},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			log.Printf("repository %s/%s not found, skipping commit sync", owner, name)
			return nil
		}
		if resp != nil {
			log.Printf("github commit list failed for %s/%s: status %d", owner, name, resp.StatusCode)
			return nil
		}
		return models.NewSyncError(models.ErrKindTransport, "github commit list failed for %s/%s: %v", owner, name, err)
	}

	uow := NewUnitOfWork(s.DB)
	commitStore := NewStore[models.Commit](uow)
	resolver := NewActorResolver(uow)

	inserted := 0
	for _, c := range commits {
		sha := c.GetSHA()
		if sha == "" {
			continue
		}

		exists, err := commitStore.Any("repository_id = ? AND sha = ?", repositoryID, sha)
		if err != nil {
			uow.Rollback()
			return err
		}
		if exists {
			continue
		}

		record := models.Commit{
			ID:           uuid.NewString(),
			RepositoryID: repositoryID,
			SHA:          sha,
			Message:      c.GetCommit().GetMessage(),
			CommittedAt:  c.GetCommit().GetAuthor().GetDate().Time,
		}
		record.Additions, record.Deletions = s.fetchCommitStats(ctx, owner, name, sha)

		if author := c.GetAuthor(); author != nil {
			id, err := resolver.EnsureActor(models.ProviderGithub,
				strconv.FormatInt(author.GetID(), 10), author.GetLogin(),
				author.GetName(), githubActorType(author))
			if err != nil {
				uow.Rollback()
				return err
			}
			record.AuthorID = &id
		}
		if committer := c.GetCommitter(); committer != nil {
			id, err := resolver.EnsureActor(models.ProviderGithub,
				strconv.FormatInt(committer.GetID(), 10), committer.GetLogin(),
				committer.GetName(), githubActorType(committer))
			if err != nil {
				uow.Rollback()
				return err
			}
			record.CommitterID = &id
		}

		commitStore.Add(&record)
		inserted++

		if err := stageDetectedLinks(uow, repositoryID, models.ArtifactCommit, sha,
			models.LinkTypeCommitMessage, record.Message); err != nil {
			uow.Rollback()
			return err
		}
	}

	if inserted == 0 {
		uow.Rollback()
		return nil
	}
	if err := uow.SaveChanges(); err != nil {
		return err
	}

	log.Printf("synced %d new commits for %s/%s", inserted, owner, name)
	return nil
}

// SyncPullRequests fetches pull requests in every state and upserts them by
// (repository, number): mutable fields are refreshed for known PRs, new
// ones are inserted with their author resolved.
func (s *GithubService) SyncPullRequests(ctx context.Context, repositoryID, owner, name string) error {
	prs, resp, err := s.Client.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: CommitPageSize()},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			log.Printf("repository %s/%s not found, skipping pull request sync", owner, name)
			return nil
		}
		if resp != nil {
			log.Printf("github pull request list failed for %s/%s: status %d", owner, name, resp.StatusCode)
			return nil
		}
		return models.NewSyncError(models.ErrKindTransport, "github pull request list failed for %s/%s: %v", owner, name, err)
	}

	uow := NewUnitOfWork(s.DB)
	prStore := NewStore[models.PullRequest](uow)
	resolver := NewActorResolver(uow)

	for _, pr := range prs {
		existing, err := prStore.FirstOrDefault("repository_id = ? AND number = ?", repositoryID, pr.GetNumber())
		if err != nil {
			uow.Rollback()
			return err
		}

		if existing != nil {
			existing.Title = pr.GetTitle()
			existing.State = pr.GetState()
			existing.GithubUpdatedAt = pr.GetUpdatedAt().Time
			existing.ClosedAt = timestampPtr(pr.ClosedAt)
			existing.MergedAt = timestampPtr(pr.MergedAt)
			prStore.Update(existing)
			continue
		}

		record := models.PullRequest{
			ID:              uuid.NewString(),
			RepositoryID:    repositoryID,
			Number:          pr.GetNumber(),
			Title:           pr.GetTitle(),
			State:           pr.GetState(),
			HeadBranch:      pr.GetHead().GetRef(),
			BaseBranch:      pr.GetBase().GetRef(),
			GithubCreatedAt: pr.GetCreatedAt().Time,
			GithubUpdatedAt: pr.GetUpdatedAt().Time,
			ClosedAt:        timestampPtr(pr.ClosedAt),
			MergedAt:        timestampPtr(pr.MergedAt),
		}

		if author := pr.GetUser(); author != nil {
			id, err := resolver.EnsureActor(models.ProviderGithub,
				strconv.FormatInt(author.GetID(), 10), author.GetLogin(),
				author.GetName(), githubActorType(author))
			if err != nil {
				uow.Rollback()
				return err
			}
			record.AuthorID = &id
		}

		prStore.Add(&record)

		if record.HeadBranch != "" {
			if err := stageDetectedLinks(uow, repositoryID, models.ArtifactBranch, record.HeadBranch,
				models.LinkTypeBranchName, record.HeadBranch); err != nil {
				uow.Rollback()
				return err
			}
		}
	}

	return uow.SaveChanges()
}

// GetCommitCount reports how many commits the repository has, optionally
// restricted to those after since. The count is read off the pagination
// trailer: with a page size of one, the last page number is the total.
// Read-only, never touches local state.
func (s *GithubService) GetCommitCount(ctx context.Context, owner, name string, since *time.Time) (int, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}}
	if since != nil {
		opts.Since = *since
	}

	commits, resp, err := s.Client.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		if resp != nil {
			return 0, models.NewSyncError(models.ErrKindHTTP, "github returned %d counting commits for %s/%s", resp.StatusCode, owner, name)
		}
		return 0, models.NewSyncError(models.ErrKindTransport, "github commit count failed for %s/%s: %v", owner, name, err)
	}

	// No Link header means everything fit on a single page.
	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(commits), nil
}

// GetLastCommitDate returns the author date of the most recent commit, or
// nil when the repository has none. Read-only.
func (s *GithubService) GetLastCommitDate(ctx context.Context, owner, name string) (*time.Time, error) {
	commits, resp, err := s.Client.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		if resp != nil {
			return nil, models.NewSyncError(models.ErrKindHTTP, "github returned %d reading last commit for %s/%s", resp.StatusCode, owner, name)
		}
		return nil, models.NewSyncError(models.ErrKindTransport, "github last commit read failed for %s/%s: %v", owner, name, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}

	date := commits[0].GetCommit().GetAuthor().GetDate().Time
	return &date, nil
}

// fetchCommitStats reads change-size counters off the single-commit
// endpoint, which the list endpoint does not carry. Stats are enrichment:
// when the fetch fails the commit is stored with nil counters rather than
// failing the batch, and since commits are immutable once observed the
// counters stay nil.
func (s *GithubService) fetchCommitStats(ctx context.Context, owner, name, sha string) (additions, deletions *int) {
	detail, _, err := s.Client.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		log.Printf("commit stats unavailable for %s/%s@%s: %v", owner, name, sha, err)
		return nil, nil
	}

	stats := detail.GetStats()
	if stats == nil {
		return nil, nil
	}

	add, del := stats.GetAdditions(), stats.GetDeletions()
	return &add, &del
}

func githubActorType(u *github.User) string {
	if u.GetType() == "Bot" {
		return models.ActorTypeBot
	}
	return models.ActorTypeUser
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
