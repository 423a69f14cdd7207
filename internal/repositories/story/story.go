package story

import (
	"context"
	"errors"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
)

var ErrNotFound = errors.New("stories not found")
var ErrMalformed = errors.New("malformed stories data")
var ErrCannotCreate = errors.New("error create story")

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

// Repository returns the raw story collection in ingestion order.
type Repository interface {
	List(ctx context.Context) ([]domain.Story, error)
}
