package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
)

// FileRepository reads a JSON array of story records from disk on every List.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

var _ Repository = (*FileRepository)(nil)

func (r *FileRepository) List(ctx context.Context) ([]domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Join(err, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read stories file %s: %w", r.path, err)
	}

	var stories []domain.Story
	if err := json.Unmarshal(b, &stories); err != nil {
		return nil, errors.Join(err, ErrMalformed)
	}
	return stories, nil
}
