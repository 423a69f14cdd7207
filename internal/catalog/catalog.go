package catalog

import (
	"context"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=catalog.go -destination=mocks/mock.go

// Client serves the story collection in ingestion order, with image
// durations filled in and unplayable records removed.
type Client interface {
	Stories(ctx context.Context) ([]domain.Story, error)
	Reload(ctx context.Context) error
	ScheduleReload(ctx context.Context) error
}
