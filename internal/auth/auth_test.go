package auth

import (
	"testing"
	"time"
)

func TestIssueThenVerifyRoundtrips(t *testing.T) {
	token, err := Issue("s3cret", "dev-machine", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Verify("s3cret", token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AgentName != "dev-machine" {
		t.Fatalf("AgentName = %q, want dev-machine", claims.AgentName)
	}
}

func TestVerifyWithWrongSecretFails(t *testing.T) {
	token, err := Issue("s3cret", "dev-machine", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify("wrong-secret", token); err == nil {
		t.Fatalf("expected verify to fail with wrong secret")
	}
}

func TestVerifyExpiredTokenFails(t *testing.T) {
	token, err := Issue("s3cret", "dev-machine", -time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify("s3cret", token); err == nil {
		t.Fatalf("expected verify to fail on expired token")
	}
}
