package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pwnedmirror/internal/dataset"
	"github.com/calvinalkan/pwnedmirror/internal/engine"
	"github.com/calvinalkan/pwnedmirror/internal/httpapi"
	"github.com/calvinalkan/pwnedmirror/internal/obs"
	"github.com/calvinalkan/pwnedmirror/internal/prefix"
)

type stubEngine struct {
	text string
	err  error
}

func (s stubEngine) GetRange(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}

func TestHandler_ServeHTTP_Success(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{text: "AAAA:1\nBBBB:2"}, obs.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/range/2AA60", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "AAAA:1\nBBBB:2", rec.Body.String())
}

func TestHandler_ServeHTTP_InvalidPrefixReturns400(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{err: prefix.ErrInvalidPrefix}, obs.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/range/zz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ServeHTTP_NotInitializedReturns500(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{err: engine.ErrNotInitialized}, obs.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/range/00000", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_ServeHTTP_CorruptedReturns500(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{err: dataset.ErrCorrupted}, obs.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/range/00000", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_ServeHTTP_NotFoundForOtherPaths(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{}, obs.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ServeHTTP_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := httpapi.New(stubEngine{}, obs.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/range/00000", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
