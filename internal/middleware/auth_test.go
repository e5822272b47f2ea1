package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prodtrack/api/internal/auth"
	"github.com/prodtrack/api/internal/middleware"
)

const testSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mustToken(t *testing.T, plant, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, uuid.New(), plant, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, "MILK_PROCESSING", "OPERATOR")

	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"no token":       "Bearer",
		"invalid token":  "Bearer invalid-token",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequirePlant(t *testing.T) {
	tests := []struct {
		name  string
		plant string
		role  string
		path  string
		want  int
	}{
		{"matching plant", "MILK_PROCESSING", "OPERATOR", "MILK_PROCESSING", http.StatusOK},
		{"case-insensitive match", "MILK_PROCESSING", "OPERATOR", "milk_processing", http.StatusOK},
		{"other plant", "MILK_PROCESSING", "SUPERVISOR", "YOGHURT", http.StatusForbidden},
		{"admin bypasses", "MILK_PROCESSING", "ADMIN", "YOGHURT", http.StatusOK},
		{"unbound user passes", "", "SUPERVISOR", "YOGHURT", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Authenticate(testSecret)(middleware.RequirePlant(okHandler()))

			req := httptest.NewRequest("GET", "/plants/"+tt.path+"/groups", nil)
			req.Header.Set("Authorization", "Bearer "+mustToken(t, tt.plant, tt.role))
			req.SetPathValue("plant", tt.path)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequirePlant_Unauthenticated(t *testing.T) {
	rr := httptest.NewRecorder()
	middleware.RequirePlant(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{"OPERATOR", http.StatusForbidden},
		{"SUPERVISOR", http.StatusOK},
		{"ADMIN", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			handler := middleware.Authenticate(testSecret)(middleware.RequireRole("ADMIN", "SUPERVISOR")(okHandler()))

			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", "Bearer "+mustToken(t, "", tt.role))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestWithClaims(t *testing.T) {
	claims := &auth.Claims{UserID: uuid.New(), Role: "ADMIN"}
	req := httptest.NewRequest("GET", "/", nil)
	ctx := middleware.WithClaims(req.Context(), claims)
	if got := middleware.ClaimsFromContext(ctx); got != claims {
		t.Fatalf("got %+v, want %+v", got, claims)
	}
}
