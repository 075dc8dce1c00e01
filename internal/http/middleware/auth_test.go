package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuth(token))
	r.GET("/admin/ping", func(c *gin.Context) {
		if !IsAdmin(c) {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		header     string
		want       int
		code       string
	}{
		{"valid", "s3cret", "Bearer s3cret", http.StatusOK, ""},
		{"scheme is case-insensitive", "s3cret", "bearer s3cret", http.StatusOK, ""},
		{"missing header", "s3cret", "", http.StatusUnauthorized, "unauthorized"},
		{"basic scheme", "s3cret", "Basic czNjcmV0", http.StatusUnauthorized, "unauthorized"},
		{"empty token", "s3cret", "Bearer ", http.StatusUnauthorized, "unauthorized"},
		{"wrong token", "s3cret", "Bearer nope", http.StatusForbidden, "forbidden"},
		{"prefix of token", "s3cret", "Bearer s3cre", http.StatusForbidden, "forbidden"},
		{"nothing configured", "", "Bearer anything", http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newAuthRouter(tc.configured)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
			if tc.code == "" {
				return
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != tc.code {
				t.Fatalf("code=%v want %s", body["code"], tc.code)
			}
			if tc.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate header on 401")
			}
		})
	}
}
