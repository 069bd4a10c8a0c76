package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db/dbtest"
	"github.com/gigflow/gigflow-backend/internal/utils"
)

const testSecret = "test-secret"

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if ae, ok := apperr.As(err); ok {
				return c.Status(ae.Code).JSON(fiber.Map{"message": ae.Message})
			}
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		},
	})
}

func readMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(b, &body)
	return body.Message
}

func requestWithToken(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	gdb := dbtest.Open(t)
	u := dbtest.CreateUser(t, gdb)
	cfg := AuthConfig{DB: gdb, Secret: testSecret, CookieName: "token"}

	app := newApp()
	app.Get("/me", RequireAuth(cfg), func(c *fiber.Ctx) error {
		cu, ok := CurrentUser(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		uid, _ := UserID(c)
		return c.JSON(fiber.Map{"email": cu.Email, "id": uid})
	})

	valid, _ := utils.SignJWT(testSecret, u.ID, time.Hour)
	ghost, _ := utils.SignJWT(testSecret, uuid.New(), time.Hour)
	forged, _ := utils.SignJWT("other-secret", u.ID, time.Hour)

	tests := []struct {
		name   string
		token  string
		status int
		msg    string
	}{
		{"no cookie", "", http.StatusUnauthorized, "Not authorized, no token"},
		{"forged", forged, http.StatusUnauthorized, "Not authorized"},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized, "Not authorized"},
		{"deleted user", ghost, http.StatusUnauthorized, "User not found"},
		{"valid", valid, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(requestWithToken("/me", tt.token))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.msg != "" {
				if got := readMessage(t, resp); got != tt.msg {
					t.Errorf("message = %q, want %q", got, tt.msg)
				}
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	gdb := dbtest.Open(t)
	u := dbtest.CreateUser(t, gdb)
	cfg := AuthConfig{DB: gdb, Secret: testSecret, CookieName: "token"}

	app := newApp()
	app.Get("/gigs", OptionalAuth(cfg), func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); ok {
			return c.SendString("user")
		}
		return c.SendString("anonymous")
	})

	valid, _ := utils.SignJWT(testSecret, u.ID, time.Hour)
	tests := []struct {
		token string
		want  string
	}{
		{"", "anonymous"},
		{"broken", "anonymous"},
		{valid, "user"},
	}
	for _, tt := range tests {
		resp, err := app.Test(requestWithToken("/gigs", tt.token))
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(b) != tt.want {
			t.Errorf("token %q: %d %q, want 200 %q", tt.token, resp.StatusCode, b, tt.want)
		}
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 0.01, Burst: 2})
	defer rl.Stop()

	app := newApp()
	app.Get("/", rl.Handler(ByIP), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		codes = append(codes, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests && resp.Header.Get("Retry-After") == "" {
			t.Error("missing Retry-After")
		}
		resp.Body.Close()
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimiter_SeparateKeysAndCleanup(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	if !rl.limiter("a").Allow() || !rl.limiter("b").Allow() {
		t.Fatal("fresh keys must be allowed")
	}
	if rl.limiter("a").Allow() {
		t.Error("key a should be exhausted")
	}
	if rl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rl.Len())
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.Len() != 0 {
		t.Errorf("idle buckets not dropped: %d", rl.Len())
	}
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(30)
	if cfg.Burst != 30 || cfg.Rate != 0.5 {
		t.Errorf("PerMinute(30) = %+v", cfg)
	}
	if PerMinute(0).Burst != 1 {
		t.Error("PerMinute clamps to at least 1")
	}
}
