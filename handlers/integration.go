package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-sync/models"
	"project-sync/services"
)

type IntegrationHandler struct {
	DB   *gorm.DB
	Sync *services.SyncService
}

func NewIntegrationHandler(db *gorm.DB, sync *services.SyncService) *IntegrationHandler {
	return &IntegrationHandler{DB: db, Sync: sync}
}

type linkIntegrationRequest struct {
	RepoOwner   string `json:"repo_owner"`
	RepoName    string `json:"repo_name"`
	JiraKey     string `json:"jira_key"`
	JiraSiteURL string `json:"jira_site_url"`
}

type integrationResponse struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	LastStatus   string     `json:"last_status"`
	LastError    string     `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// LinkIntegration binds a project to a GitHub repository and/or a Jira
// project. Both references are validated against the provider first, and
// the records are written in one transaction so a failure never leaves a
// half-linked integration behind.
func (h *IntegrationHandler) LinkIntegration(c *gin.Context) {
	projectID := c.Param("projectID")

	var req linkIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wantRepo := req.RepoOwner != "" && req.RepoName != ""
	wantJira := req.JiraKey != "" && req.JiraSiteURL != ""
	if !wantRepo && !wantJira {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to link: specify a repository and/or a jira project"})
		return
	}

	ctx := c.Request.Context()

	if wantRepo {
		ok, err := h.Sync.Github.ValidateRepository(ctx, req.RepoOwner, req.RepoName)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "github is unreachable"})
			return
		}
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "repository not found or not accessible"})
			return
		}
	}

	if wantJira {
		ok, err := h.Sync.Jira.ValidateProject(ctx, req.JiraKey, req.JiraSiteURL)
		if err != nil {
			if kind, known := models.KindOf(err); known && kind == models.ErrKindConfig {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "jira is unreachable"})
			return
		}
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "jira project not found or not accessible"})
			return
		}
	}

	var integration models.Integration
	uow := services.NewUnitOfWork(h.DB)
	err := uow.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).First(&integration).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			integration = models.Integration{
				ID:         uuid.NewString(),
				ProjectID:  projectID,
				LastStatus: models.SyncStatusPending,
				IsActive:   true,
			}
			if err := tx.Create(&integration).Error; err != nil {
				return err
			}
		}

		if wantRepo {
			repo := models.ExternalRepository{Owner: req.RepoOwner, Name: req.RepoName}
			if err := tx.Where(&repo).
				Attrs(models.ExternalRepository{ID: uuid.NewString()}).
				FirstOrCreate(&repo).Error; err != nil {
				return err
			}
			integration.RepositoryID = &repo.ID
		}

		if wantJira {
			project := models.JiraProjectLink{Key: req.JiraKey}
			if err := tx.Where(&project).
				Attrs(models.JiraProjectLink{ID: uuid.NewString(), SiteURL: req.JiraSiteURL}).
				FirstOrCreate(&project).Error; err != nil {
				return err
			}
			// Re-linking a known key with a corrected site url must not
			// keep the stale one.
			if project.SiteURL != req.JiraSiteURL {
				project.SiteURL = req.JiraSiteURL
				if err := tx.Save(&project).Error; err != nil {
					return err
				}
			}
			integration.JiraProjectID = &project.ID
		}

		return tx.Save(&integration).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link integration"})
		return
	}

	c.JSON(http.StatusCreated, toIntegrationResponse(&integration))
}

// SyncNow triggers an immediate sync through the same path the scheduler
// uses. A sync already in flight for the integration yields 409.
func (h *IntegrationHandler) SyncNow(c *gin.Context) {
	id := c.Param("id")

	err := h.Sync.SyncIntegration(c.Request.Context(), id)
	if err == models.ErrSyncInFlight {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running for this integration"})
		return
	}
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}

	var integration models.Integration
	if dbErr := h.DB.First(&integration, "id = ?", id).Error; dbErr != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}
	c.JSON(http.StatusOK, toIntegrationResponse(&integration))
}

// GetIntegration reports sync state for dashboards.
func (h *IntegrationHandler) GetIntegration(c *gin.Context) {
	var integration models.Integration
	if err := h.DB.First(&integration, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		return
	}
	c.JSON(http.StatusOK, toIntegrationResponse(&integration))
}

// IssueLinks lists every recorded work link for one Jira issue key.
func (h *IntegrationHandler) IssueLinks(c *gin.Context) {
	var issue models.JiraIssue
	if err := h.DB.First(&issue, "key = ?", c.Param("key")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}

	links, err := services.LinksForIssue(h.DB, issue.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue_key": issue.Key, "links": links})
}

// RepositoryLinks lists work links for one artifact ref in a repository.
func (h *IntegrationHandler) RepositoryLinks(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ref query parameter is required"})
		return
	}

	links, err := services.LinksForArtifact(h.DB, c.Param("id"), ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func toIntegrationResponse(integration *models.Integration) integrationResponse {
	return integrationResponse{
		ID:           integration.ID,
		ProjectID:    integration.ProjectID,
		LastStatus:   integration.LastStatus,
		LastError:    integration.LastError,
		LastSyncedAt: integration.LastSyncedAt,
	}
}
