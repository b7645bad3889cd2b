package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/webstack/webstack/internal/common"
)

func newCodec(t *testing.T, alg string) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec([]byte("test-secret"), alg)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	return c
}

func TestNewTokenCodec_Algorithms(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		if _, err := NewTokenCodec([]byte("k"), alg); err != nil {
			t.Errorf("%s must be supported: %v", alg, err)
		}
	}
	for _, alg := range []string{"", "none", "RS256", "ES256"} {
		if _, err := NewTokenCodec([]byte("k"), alg); err == nil {
			t.Errorf("%q must be rejected", alg)
		}
	}
}

func TestIssueAndVerify(t *testing.T) {
	c := newCodec(t, "HS256")

	token, err := c.Issue("a@example.com", TokenTypeAccess, time.Hour,
		IssueOptions{UserID: 42, Role: "admin"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := c.Verify(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != "a@example.com" {
		t.Errorf("unexpected subject: %q", claims.Subject)
	}
	if claims.UserID != 42 {
		t.Errorf("unexpected user_id: %d", claims.UserID)
	}
	if claims.Role != "admin" {
		t.Errorf("unexpected role: %q", claims.Role)
	}
}

func TestVerify_Expired(t *testing.T) {
	c := newCodec(t, "HS256")

	token, err := c.Issue("a@example.com", TokenTypeAccess, -time.Minute, IssueOptions{UserID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = c.Verify(token, TokenTypeAccess)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_TypeMismatch(t *testing.T) {
	c := newCodec(t, "HS256")

	token, err := c.Issue("a@example.com", TokenTypeRefresh, time.Hour,
		IssueOptions{UserID: 1, JTI: NewJTI()})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = c.Verify(token, TokenTypeAccess)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Tampered(t *testing.T) {
	c := newCodec(t, "HS256")

	token, err := c.Issue("a@example.com", TokenTypeAccess, time.Hour, IssueOptions{UserID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := c.Verify(tampered, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	c := newCodec(t, "HS256")

	other, err := NewTokenCodec([]byte("other-secret"), "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}

	token, err := other.Issue("a@example.com", TokenTypeAccess, time.Hour, IssueOptions{UserID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_CrossAlgorithmRejected(t *testing.T) {
	hs256 := newCodec(t, "HS256")
	hs512 := newCodec(t, "HS512")

	token, err := hs512.Issue("a@example.com", TokenTypeAccess, time.Hour, IssueOptions{UserID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := hs256.Verify(token, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	c := newCodec(t, "HS256")
	if _, err := c.Verify("not.a.token", TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewJTI_Unique(t *testing.T) {
	a, b := NewJTI(), NewJTI()
	if a == b {
		t.Fatal("jti values must be unique")
	}
	if strings.TrimSpace(a) == "" {
		t.Fatal("jti must not be empty")
	}
}
