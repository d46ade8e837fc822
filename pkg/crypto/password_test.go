package crypto

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("VerifyPassword() = false for matching password")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("VerifyPassword() = true for non-matching password")
	}
}

func TestHashPasswordSaltsPerCall(t *testing.T) {
	h1, err := HashPassword("samepassword")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("samepassword")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password must differ (per-password salt)")
	}
}

func TestPasswordTruncationIdentity(t *testing.T) {
	// bcrypt caps input at 72 bytes; two passwords agreeing on the first
	// 72 bytes must verify against each other's hashes.
	long := strings.Repeat("a", 100)
	longer := strings.Repeat("a", 72) + strings.Repeat("b", 28)

	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !VerifyPassword(long, hash) {
		t.Error("VerifyPassword() = false for the original 100-char password")
	}
	if !VerifyPassword(longer, hash) {
		t.Error("VerifyPassword() = false for a password equal in the first 72 bytes")
	}
	if VerifyPassword(strings.Repeat("a", 71)+"z", hash) {
		t.Error("VerifyPassword() = true for a password differing inside the first 72 bytes")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"exactly 8 chars", "12345678", false},
		{"7 chars rejected", "1234567", true},
		{"100 chars accepted", strings.Repeat("x", 100), false},
		{"empty rejected", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	low, err := HashPasswordWithCost("somepassword", 4)
	if err != nil {
		t.Fatalf("HashPasswordWithCost() error = %v", err)
	}
	if !NeedsRehash(low) {
		t.Error("NeedsRehash() = false for a low-cost hash")
	}

	current, err := HashPassword("somepassword")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if NeedsRehash(current) {
		t.Error("NeedsRehash() = true for a current-cost hash")
	}

	if !NeedsRehash("not a bcrypt hash") {
		t.Error("NeedsRehash() = false for garbage input")
	}
}
