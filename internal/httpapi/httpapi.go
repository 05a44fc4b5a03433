// Package httpapi implements the Reader HTTP surface: a single route
// exposing Engine.GetRange over HTTP. There is exactly one route and no
// routing tree, so this is built directly on net/http rather than a
// third-party router — see DESIGN.md for the justification.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/pwnedmirror/internal/dataset"
	"github.com/calvinalkan/pwnedmirror/internal/engine"
	"github.com/calvinalkan/pwnedmirror/internal/prefix"
)

// RangeReader is the capability httpapi needs from the Mirror Engine.
type RangeReader interface {
	GetRange(ctx context.Context, prefixText string) (string, error)
}

// Handler serves GET /range/{prefix}.
type Handler struct {
	engine RangeReader
	logger *zap.Logger
}

// New constructs a Handler serving reads from eng.
func New(eng RangeReader, logger *zap.Logger) *Handler {
	return &Handler{engine: eng, logger: logger}
}

const rangePathPrefix = "/range/"

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !strings.HasPrefix(r.URL.Path, rangePathPrefix) {
		http.NotFound(w, r)
		return
	}

	prefixText := strings.TrimPrefix(r.URL.Path, rangePathPrefix)

	text, err := h.engine.GetRange(r.Context(), prefixText)
	if err != nil {
		h.writeError(w, prefixText, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (h *Handler) writeError(w http.ResponseWriter, prefixText string, err error) {
	switch {
	case errors.Is(err, prefix.ErrInvalidPrefix):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNotInitialized):
		h.logger.Warn("range requested before first mirror completed", zap.String("prefix", prefixText))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.Is(err, dataset.ErrCorrupted):
		h.logger.Error("dataset corrupted on read", zap.String("prefix", prefixText), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		h.logger.Error("unexpected error serving range", zap.String("prefix", prefixText), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
