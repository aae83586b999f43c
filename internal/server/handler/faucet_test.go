package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
	"github.com/chainedmetrics/kpimarkets/internal/server/middleware"
	"github.com/chainedmetrics/kpimarkets/internal/service"
)

type fakeVerifier struct {
	claims *service.Claims
}

func (f *fakeVerifier) ParseToken(string) (*service.Claims, error) {
	if f.claims == nil {
		return nil, errors.New("bad token")
	}
	return f.claims, nil
}

// faucetEndpoint wires the handler behind the JWT middleware like the server
// does, so the claims flow through the request context.
func faucetEndpoint(svc FaucetService, verifier middleware.TokenVerifier) http.Handler {
	h := NewFaucetHandler(svc, discardLogger())
	return middleware.JWT(verifier)(http.HandlerFunc(h.Request))
}

func TestFaucetRequest(t *testing.T) {
	svc := &fakeFaucetService{}
	ep := faucetEndpoint(svc, &fakeVerifier{claims: &service.Claims{Email: "trader@example.com"}})

	req := httptest.NewRequest(http.MethodPost, "/api/faucet",
		strings.NewReader(`{"address":"0x1111111111111111111111111111111111111111"}`))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if svc.email != "trader@example.com" {
		t.Errorf("request email = %q, want token email", svc.email)
	}
}

func TestFaucetRequestRequiresToken(t *testing.T) {
	ep := faucetEndpoint(&fakeFaucetService{}, &fakeVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/api/faucet",
		strings.NewReader(`{"address":"0x1111111111111111111111111111111111111111"}`))
	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestFaucetRequestErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"already paid", domain.ErrFaucetAlreadyPaid, http.StatusConflict},
		{"pending request", domain.ErrAlreadyExists, http.StatusConflict},
		{"bad address", domain.ErrInvalidInput, http.StatusBadRequest},
		{"inactive account", domain.ErrUserInactive, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ep := faucetEndpoint(
				&fakeFaucetService{err: tc.err},
				&fakeVerifier{claims: &service.Claims{Email: "trader@example.com"}},
			)

			req := httptest.NewRequest(http.MethodPost, "/api/faucet",
				strings.NewReader(`{"address":"0x1111111111111111111111111111111111111111"}`))
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			ep.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
