package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIsValidUserID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"USR001", true},
		{"ADMIN001", true},
		{"A-1_B", true},
		{"", false},
		{"usr001", false},
		{"USR 001", false},
		{"USR001'; DROP TABLE accounts--", false},
		{strings.Repeat("A", 37), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidUserID(tt.id), "id %q", tt.id)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
}

func TestValidateCollectsErrors(t *testing.T) {
	errs := Validate(
		Required("email", ""),
		ValidUserID("user_id", "lowercase"),
		MaxLength("name", strings.Repeat("x", 20), 10),
	)
	assert.Len(t, errs, 3)
	assert.Contains(t, errs.Error(), "email")
}

func TestValidateAllPass(t *testing.T) {
	errs := Validate(
		Required("email", "demo@fingate.dev"),
		ValidUserID("user_id", "USR001"),
	)
	assert.Empty(t, errs)
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(16))
	r.POST("/", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
