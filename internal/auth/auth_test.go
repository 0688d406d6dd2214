package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	token, err := GenerateToken("user-7", "Finance", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-7" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Department != "Finance" {
		t.Fatalf("unexpected department: %s", claims.Department)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := ParseAndValidate("not.a.token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("user-7", "", time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestBlacklistBlocks(t *testing.T) {
	b := NewBlacklist([]string{"u1", " u2 "}, []string{"Finance"})

	if !b.Blocks("u1", "") {
		t.Fatal("u1 should be blocked")
	}
	if !b.Blocks("u2", "hr") {
		t.Fatal("u2 should be blocked regardless of department")
	}
	if !b.Blocks("u9", "finance") {
		t.Fatal("finance department should be blocked case-insensitively")
	}
	if b.Blocks("u9", "hr") {
		t.Fatal("unlisted identity should pass")
	}
}

func TestAllowedUsesContextIdentity(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "u1", "hr")
	if Allowed(ctx, []string{"u1"}, nil) {
		t.Fatal("blocked user must not be allowed")
	}
	if !Allowed(ctx, []string{"u2"}, []string{"finance"}) {
		t.Fatal("unblocked user must be allowed")
	}
	if !Allowed(context.Background(), []string{"u1"}, nil) {
		t.Fatal("anonymous context is not the blacklist's concern")
	}
}
