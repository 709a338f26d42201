package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"furniq/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueTokenCarriesRoleAndIssuer(t *testing.T) {
	h := NewHandler(nil, "test-secret", "", nil, nil)

	tokenStr, err := h.issueToken(42, "guest")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims := &customClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Role != "guest" {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.Issuer != tokenIssuer {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestRespondSessionIncludesRoleAndEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, "test-secret", "", nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/login/guest", nil)

	h.respondSession(c, model.User{ID: 7, Email: demoEmail, Role: "guest"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp sessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.Role != "guest" || resp.Email != demoEmail {
		t.Fatalf("session = %+v", resp)
	}
}

func TestGenerateCodeIsNumeric(t *testing.T) {
	code, err := generateCode(6)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d", len(code))
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			t.Fatalf("non-digit in code %q", code)
		}
	}

	if _, err := generateCode(0); err == nil {
		t.Fatal("zero length must be rejected")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Anna@Example.DE "); got != "anna@example.de" {
		t.Fatalf("normalized = %q", got)
	}
}
