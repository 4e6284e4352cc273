package repository

import (
	"context"
	"time"

	"todoTracker/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, username, passwordDigest string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// TaskRepositoryI defines operations on Task entities. Every method is scoped
// to the owning user; a task owned by someone else behaves as missing.
type TaskRepositoryI interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	GetForUser(ctx context.Context, userID, id int64) (*models.Task, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Task, error)
	ListDueSoon(ctx context.Context, userID int64, now time.Time) ([]models.DueSoon, error)
	Update(ctx context.Context, t *models.Task) error
	Patch(ctx context.Context, userID, id int64, p models.TaskPatch) error
	MarkDone(ctx context.Context, userID, id int64) error
	Delete(ctx context.Context, userID, id int64) error
	InTx(ctx context.Context, fn func(tx TaskRepositoryI) error) error
}
