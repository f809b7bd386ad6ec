package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crimson-sun/anchorsense/internal/engine/anchors"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// SentimentRequest is the body of POST /api/sentiment. Anchors replaces the
// server's anchor set for this request when present.
type SentimentRequest struct {
	Texts   []string         `json:"texts"`
	Anchors *model.AnchorSet `json:"anchors,omitempty"`
}

// SentimentResponse is the success body of POST /api/sentiment.
type SentimentResponse struct {
	Reviews []model.Review `json:"reviews"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const (
	errEmptyTexts      = "'texts' must be a non-empty array"
	errAnchorsDisabled = "'anchors' is not accepted by this server"
)

func (s *Server) handleSentiment(c echo.Context) error {
	var req SentimentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if msg := s.validateTexts(req.Texts); msg != "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
	}

	set := s.anchors
	if req.Anchors != nil {
		if msg := s.validateAnchors(*req.Anchors); msg != "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
		}
		set = *req.Anchors
	}

	reviews, err := s.engine.ClassifyAll(c.Request().Context(), req.Texts, set)
	if err != nil {
		return s.failure(c, "classification failed", err)
	}
	return c.JSON(http.StatusOK, SentimentResponse{Reviews: reviews})
}

func (s *Server) handleEmbeddings(c echo.Context) error {
	var req embedder.EmbeddingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if msg := s.validateTexts(req.Texts); msg != "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
	}
	if req.Model != "" && req.Model != s.model {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("unsupported model %q, this server embeds with %q", req.Model, s.model),
		})
	}

	ctx := c.Request().Context()
	vecs, err := s.embedder.EmbedBatch(ctx, req.Texts)
	if err == nil {
		err = embedder.CheckCount(embedder.NameOf(s.embedder), len(req.Texts), vecs)
	}
	if err != nil {
		return s.failure(c, "embedding failed", embedder.AsProviderError(embedder.NameOf(s.embedder), err))
	}
	return c.JSON(http.StatusOK, embedder.EmbeddingsResponse{Embeddings: vecs})
}

func (s *Server) validateTexts(texts []string) string {
	if len(texts) == 0 {
		return errEmptyTexts
	}
	if len(texts) > s.maxTexts {
		return fmt.Sprintf("'texts' holds %d entries, at most %d are allowed", len(texts), s.maxTexts)
	}
	return ""
}

func (s *Server) validateAnchors(set model.AnchorSet) string {
	if !s.requestAnchors {
		return errAnchorsDisabled
	}
	if n := set.Len(); n > s.maxTexts {
		return fmt.Sprintf("'anchors' holds %d phrases, at most %d are allowed", n, s.maxTexts)
	}
	return ""
}

// failure maps an engine or provider error to a JSON error response.
func (s *Server) failure(c echo.Context, msg string, err error) error {
	status := http.StatusInternalServerError
	var provErr *embedder.ProviderError
	switch {
	case errors.Is(err, anchors.ErrEmptySet):
		status = http.StatusBadRequest
	case errors.As(err, &provErr):
		status = http.StatusBadGateway
	}

	slog.Error(msg, "path", c.Path(), "status", status, "error", err)
	return c.JSON(status, errorResponse{Error: err.Error()})
}
