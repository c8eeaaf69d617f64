package api

import (
	"context"

	"github.com/starford/quill/internal/engine"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Service is the subset of the engine the HTTP handlers call.
// *engine.Engine implements it.
type Service interface {
	Create(ctx context.Context, title, body string) (*models.Note, error)
	Show(ctx context.Context, title string) (*models.NoteDetail, error)
	UpdateIfMatch(ctx context.Context, title, body, ifMatch string) (*models.Note, error)
	Delete(ctx context.Context, title string) error
	Rename(ctx context.Context, oldTitle, newTitle string) (*models.Note, error)
	List(ctx context.Context, order storage.Order) []models.NoteMeta
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	Links(ctx context.Context, title string) ([]string, error)
	Backlinks(ctx context.Context, title string) ([]string, error)
	Graph(ctx context.Context) ([]string, []models.Edge)
	Reload(ctx context.Context) error
	Status() engine.Status
}

var _ Service = (*engine.Engine)(nil)
