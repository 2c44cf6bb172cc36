package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civic-alerts/internal/infrastructure/jwt/jwttest"
	"github.com/civic-alerts/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestJWTProvider(t *testing.T) *jwttest.Issuer {
	t.Helper()
	return jwttest.New(t)
}

// bearerReq builds a request with a signed Bearer token for the given identity.
func bearerReq(t *testing.T, p *jwttest.Issuer, method, target, email, role string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign("u1", email, role)
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	return withChiParam(r, "id", id)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonReq(method, target string, v interface{}) *http.Request {
	body, _ := json.Marshal(v)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwttest.Issuer, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}
