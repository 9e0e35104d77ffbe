package infra

import (
	"context"
	"testing"
	"time"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	tok, err := SignJWT("s3cret", "renter-1", "user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UID != "renter-1" || id.Role != "user" {
		t.Errorf("identity = %+v", id)
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	tok, err := SignJWT("s3cret", "renter-1", "user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("other").VerifyIDToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	tok, err := SignJWT("s3cret", "renter-1", "user", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	tok, err := SignJWT("s3cret", "", "user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for token without subject")
	}
}
