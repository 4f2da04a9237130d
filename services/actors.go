package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-sync/models"
)

// ActorResolver hands out the single local record for an externally
// identified actor. Creations are staged on the bound unit of work, so they
// commit (or roll back) together with the entities that reference them. The
// cache gives read-your-writes inside one batch: two commits by the same
// login resolve to the same local id before anything is flushed.
type ActorResolver struct {
	uow   *UnitOfWork
	cache map[string]string // "provider/externalID" -> local id
}

func NewActorResolver(uow *UnitOfWork) *ActorResolver {
	return &ActorResolver{
		uow:   uow,
		cache: make(map[string]string),
	}
}

// EnsureActor returns the local id for (provider, externalID), creating a
// record on first sight. It never duplicates and never merges two distinct
// external ids.
func (r *ActorResolver) EnsureActor(provider, externalID, login, displayName, actorType string) (string, error) {
	if externalID == "" {
		return "", fmt.Errorf("empty external id for %s actor %q", provider, login)
	}

	cacheKey := provider + "/" + externalID
	if id, ok := r.cache[cacheKey]; ok {
		return id, nil
	}

	var existing models.ExternalActor
	err := r.uow.DB().Where("provider = ? AND external_id = ?", provider, externalID).First(&existing).Error
	if err == nil {
		r.cache[cacheKey] = existing.ID
		return existing.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", fmt.Errorf("actor lookup failed: %w", err)
	}

	actor := models.ExternalActor{
		ID:          uuid.NewString(),
		Provider:    provider,
		ExternalID:  externalID,
		Login:       login,
		DisplayName: displayName,
		Type:        actorType,
	}
	r.uow.Stage(func(tx *gorm.DB) error {
		return tx.Create(&actor).Error
	})

	r.cache[cacheKey] = actor.ID
	return actor.ID, nil
}
