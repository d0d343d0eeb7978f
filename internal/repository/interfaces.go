package repository

import (
	"context"

	"github.com/Kosench/tinylink/internal/model"
)

// LinkRepository - хранилище ссылок.
// Create и RegisterClick обязаны быть одной атомарной операцией на стороне хранилища.
type LinkRepository interface {
	FindByCode(ctx context.Context, shortCode string) (*model.Link, error)
	Create(ctx context.Context, shortCode, targetURL string) (*model.Link, error)
	RegisterClick(ctx context.Context, id int64) (*model.Link, error)
	DeleteByCode(ctx context.Context, shortCode string) error
	ListAll(ctx context.Context) ([]*model.Link, error)
	Ping(ctx context.Context) error
}
