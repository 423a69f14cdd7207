package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	apperrors "github.com/orgball2608/insta-stories-viewer/pkg/errors"
)

const storiesErrorMessage = "Error fetching stories"

type messageResponse struct {
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) error {
	response, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(response)
	return err
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	if werr := respondWithJSON(w, status, messageResponse{Message: apperrors.GetMessage(err)}); werr != nil {
		s.logger.Error("Failed to write response", "error", werr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.catalog.Stories(r.Context())
	if err != nil {
		s.respondWithError(w, r, apperrors.WrapWithCode(err, apperrors.CodeInternal, storiesErrorMessage))
		return
	}
	if err := respondWithJSON(w, http.StatusOK, stories); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groupsFor(r.Context(), clientID(r))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	if err := respondWithJSON(w, http.StatusOK, groups); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) groupsFor(ctx context.Context, client string) ([]domain.UserStoryGroup, error) {
	stories, err := s.catalog.Stories(ctx)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeInternal, storiesErrorMessage)
	}
	l, release := s.ledgers.Acquire(ctx, client)
	defer release()
	return domain.GroupByUser(stories, l.IsViewed), nil
}

func (s *Server) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	storyID := strings.TrimSpace(r.PathValue("id"))
	if storyID == "" {
		s.respondWithError(w, r, apperrors.WrapWithCode(apperrors.ErrBadRequest, apperrors.CodeBadRequest, "story id is required"))
		return
	}

	l, release := s.ledgers.Acquire(r.Context(), clientID(r))
	defer release()
	if err := l.MarkViewed(r.Context(), storyID); err != nil {
		s.respondWithError(w, r, apperrors.WrapWithCode(err, apperrors.CodeInternal, "Error saving viewed story"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientID identifies whose ledger a request touches. Clients without one
// share the default ledger.
func clientID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("client"))
}
