package services

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// UnitOfWork stages writes until SaveChanges flushes them inside a single
// transaction. Reads always go straight to the database; only mutations are
// deferred. A batch that fails part-way leaves nothing visible.
type UnitOfWork struct {
	db      *gorm.DB
	mu      sync.Mutex
	pending []func(tx *gorm.DB) error
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// DB returns the underlying handle for read paths.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

// Stage registers a mutation to run when SaveChanges is called.
func (u *UnitOfWork) Stage(op func(tx *gorm.DB) error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, op)
}

// Pending reports how many mutations are staged.
func (u *UnitOfWork) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}

// SaveChanges runs every staged mutation inside one transaction, in the
// order they were staged. On success the stage is cleared; on failure the
// transaction is rolled back and the stage kept, so the caller can decide
// to retry or Rollback.
func (u *UnitOfWork) SaveChanges() error {
	u.mu.Lock()
	ops := u.pending
	u.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	err := u.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unit of work commit failed: %w", err)
	}

	u.mu.Lock()
	u.pending = nil
	u.mu.Unlock()
	return nil
}

// Rollback discards every staged mutation without touching the database.
func (u *UnitOfWork) Rollback() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = nil
}

// Transaction runs fn inside an explicit transaction. Multi-step operations
// (like linking an integration) use this so partial state is never visible
// on failure.
func (u *UnitOfWork) Transaction(fn func(tx *gorm.DB) error) error {
	return u.db.Transaction(fn)
}

// Begin starts a transaction the caller commits or rolls back itself. Most
// callers are better served by Transaction.
func (u *UnitOfWork) Begin() *gorm.DB {
	return u.db.Begin()
}

// Store is a natural-key-aware repository over one entity type. Reads hit
// the database directly; Add, AddRange, Update and Remove stage into the
// bound unit of work.
type Store[T any] struct {
	uow *UnitOfWork
}

func NewStore[T any](uow *UnitOfWork) *Store[T] {
	return &Store[T]{uow: uow}
}

// Query returns a model-scoped query for callers that need more than the
// canned read helpers.
func (s *Store[T]) Query() *gorm.DB {
	var model T
	return s.uow.db.Model(&model)
}

func (s *Store[T]) GetByID(id string) (*T, error) {
	var entity T
	err := s.uow.db.First(&entity, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *Store[T]) Find(query any, args ...any) ([]T, error) {
	var entities []T
	err := s.uow.db.Where(query, args...).Find(&entities).Error
	return entities, err
}

// FirstOrDefault returns the first match, or nil without error when there
// is none.
func (s *Store[T]) FirstOrDefault(query any, args ...any) (*T, error) {
	var entity T
	err := s.uow.db.Where(query, args...).First(&entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *Store[T]) Any(query any, args ...any) (bool, error) {
	count, err := s.Count(query, args...)
	return count > 0, err
}

func (s *Store[T]) Count(query any, args ...any) (int64, error) {
	var count int64
	q := s.Query()
	if query != nil {
		q = q.Where(query, args...)
	}
	err := q.Count(&count).Error
	return count, err
}

// GetPaged returns one page of entities. Page numbers start at 1. The
// filter and order are optional.
func (s *Store[T]) GetPaged(pageNumber, pageSize int, filter any, orderBy string, args ...any) ([]T, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	var entities []T
	q := s.uow.db.Offset((pageNumber - 1) * pageSize).Limit(pageSize)
	if filter != nil {
		q = q.Where(filter, args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	err := q.Find(&entities).Error
	return entities, err
}

func (s *Store[T]) Add(entity *T) {
	s.uow.Stage(func(tx *gorm.DB) error {
		return tx.Create(entity).Error
	})
}

func (s *Store[T]) AddRange(entities []*T) {
	for _, entity := range entities {
		s.Add(entity)
	}
}

func (s *Store[T]) Update(entity *T) {
	s.uow.Stage(func(tx *gorm.DB) error {
		return tx.Save(entity).Error
	})
}

func (s *Store[T]) Remove(entity *T) {
	s.uow.Stage(func(tx *gorm.DB) error {
		return tx.Delete(entity).Error
	})
}
