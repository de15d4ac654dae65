package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	tokens map[string]*auth.Token
}

func (s stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := s.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid token")
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, UserUID(c))
}

func TestRequireAuth(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]*auth.Token{
		"good": {UID: "user-1", Claims: map[string]interface{}{"email": "a@splikz.com"}},
	}}

	tests := []struct {
		name     string
		target   string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "bearer header", target: "/", header: "Bearer good", wantCode: http.StatusOK, wantBody: "user-1"},
		{name: "lowercase scheme", target: "/", header: "bearer good", wantCode: http.StatusOK, wantBody: "user-1"},
		{name: "query token", target: "/?access_token=good", wantCode: http.StatusOK, wantBody: "user-1"},
		{name: "missing token", target: "/", wantCode: http.StatusUnauthorized},
		{name: "bad token", target: "/", header: "Bearer nope", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, RequireAuth(verifier)(okHandler)(c))
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireAuthSetsEmail(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]*auth.Token{
		"good": {UID: "user-1", Claims: map[string]interface{}{"email": "a@splikz.com"}},
	}}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	c := e.NewContext(req, httptest.NewRecorder())

	var email interface{}
	err := RequireAuth(verifier)(func(c echo.Context) error {
		email = c.Get(ContextUserEmail)
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, "a@splikz.com", email)
}

func TestRequireAuthWithoutVerifier(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, RequireAuth(nil)(okHandler)(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireSharedSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		sent     string
		wantCode int
	}{
		{name: "match", secret: "s3cret", sent: "s3cret", wantCode: http.StatusOK},
		{name: "mismatch", secret: "s3cret", sent: "guess", wantCode: http.StatusUnauthorized},
		{name: "missing", secret: "s3cret", wantCode: http.StatusUnauthorized},
		{name: "unconfigured", secret: "", sent: "", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.sent != "" {
				req.Header.Set("X-Webhook-Secret", tt.sent)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, RequireSharedSecret("X-Webhook-Secret", tt.secret)(okHandler)(c))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
