package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bottelegram "github.com/unimi-net/campus-hub/internal/interface/telegram"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
)

type fakeProcessor struct {
	calledToken string
	err         error
}

func (f *fakeProcessor) Process(ctx context.Context, token string, update *telegram.Update) error {
	f.calledToken = token
	return f.err
}

func newTestServer(p Processor) *Server {
	return NewServer(DefaultConfig(), Dependencies{Processor: p})
}

func TestHandleWebhook_MissingToken(t *testing.T) {
	srv := newTestServer(&fakeProcessor{})
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_NonPostRejected(t *testing.T) {
	srv := newTestServer(&fakeProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/webhook?token=abc", nil)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleWebhook_UnknownTokenRejected(t *testing.T) {
	srv := newTestServer(&fakeProcessor{err: bottelegram.ErrUnknownToken})
	body := strings.NewReader(`{"update_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook?token=bogus", body)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleWebhook_SuccessNeverEchoesToken(t *testing.T) {
	proc := &fakeProcessor{}
	srv := newTestServer(proc)
	body := strings.NewReader(`{"update_id":42}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook?token=supersecret", body)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "supersecret", proc.calledToken)
	assert.NotContains(t, rec.Body.String(), "supersecret")

	var got map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got["ok"])
}

func TestHandleWebhook_DispatchErrorStillAcks(t *testing.T) {
	srv := newTestServer(&fakeProcessor{err: errors.New("handler blew up")})
	body := strings.NewReader(`{"update_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook?token=abc", body)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealthcheck_AlwaysReturns200(t *testing.T) {
	srv := newTestServer(&fakeProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()

	srv.buildMiddlewareChain(srv.router).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
