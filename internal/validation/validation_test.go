package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last+tag@sub.example.co",
	}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", email, err)
		}
	}

	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		strings.Repeat("a", 250) + "@x.com",
	}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) = nil, want error", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345678"); err != nil {
		t.Errorf("8 chars should pass: %v", err)
	}
	if err := ValidatePassword("1234567"); err == nil {
		t.Error("7 chars should fail")
	}
	if err := ValidatePassword(strings.Repeat("x", 72)); err != nil {
		t.Errorf("72 bytes should pass: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); err == nil {
		t.Error("73 bytes should fail (bcrypt truncation)")
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"ada", "ada.lovelace", "user_42", "A-b-c", strings.Repeat("x", 30)}
	for _, username := range valid {
		if err := ValidateUsername(username); err != nil {
			t.Errorf("ValidateUsername(%q) = %v, want nil", username, err)
		}
	}

	invalid := []string{"", "ab", strings.Repeat("x", 31), "has space", "bang!", "émile"}
	for _, username := range invalid {
		if err := ValidateUsername(username); err == nil {
			t.Errorf("ValidateUsername(%q) = nil, want error", username)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Ada Lovelace"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := ValidateName("   "); err == nil {
		t.Error("whitespace-only name should fail")
	}
	if err := ValidateName(strings.Repeat("x", 51)); err == nil {
		t.Error("51 chars should fail")
	}
}
