package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), "test-secret")

	reg, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "ADA@example.com", "whatever1", "Other"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"ok", "ada@example.com", "correct horse", nil},
		{"wrong password", "ada@example.com", "battery staple", ErrInvalidCredentials},
		{"unknown email", "bob@example.com", "correct horse", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			id, err := svc.ValidateToken(res.Token)
			if err != nil || id != reg.User.ID {
				t.Fatalf("token subject = %q, %v", id, err)
			}
		})
	}

	if _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Fatal("garbage token accepted")
	}
	other := NewService(store.NewMemory(), "other-secret")
	if _, err := other.ValidateToken(reg.Token); err == nil {
		t.Fatal("token accepted under a different secret")
	}
}

func TestMiddlewareAndMe(t *testing.T) {
	svc := NewService(store.NewMemory(), "test-secret")
	h := NewHandler(svc)
	reg, err := svc.Register(context.Background(), "ada@example.com", "correct horse", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	me := svc.AuthMiddleware(http.HandlerFunc(h.Me))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"bad token", "Bearer abc", "", http.StatusUnauthorized},
		{"ok", "Bearer " + reg.Token, "", http.StatusOK},
		{"query token", "", "?token=" + reg.Token, http.StatusOK},
		{"bad query token", "", "?token=abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			me.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusOK {
				var u User
				json.NewDecoder(rec.Body).Decode(&u)
				if u.DisplayName != "Ada" {
					t.Fatalf("user = %+v", u)
				}
			}
		})
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	h := NewHandler(NewService(store.NewMemory(), "s"))
	tests := []struct {
		name string
		body string
		want int
	}{
		{"garbage", "{", http.StatusBadRequest},
		{"missing fields", `{"email":"a@b.c"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@b.c","password":"short","displayName":"A"}`, http.StatusBadRequest},
		{"bad email", `{"email":"not an email","password":"long enough"}`, http.StatusBadRequest},
		{"ok", `{"email":"a@b.c","password":"long enough","displayName":"A"}`, http.StatusCreated},
		{"taken", `{"email":"a@b.c","password":"long enough","displayName":"A"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(tt.body)))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
