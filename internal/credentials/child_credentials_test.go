package credentials

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateChildSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		secret, err := GenerateChildSecret()
		if err != nil {
			t.Fatalf("GenerateChildSecret() error = %v", err)
		}
		if len(secret) != SecretLength {
			t.Errorf("secret length %d, want %d", len(secret), SecretLength)
		}
		for _, c := range secret {
			if !strings.ContainsRune(secretAlphabet, c) {
				t.Errorf("secret %q contains %q outside the alphabet", secret, c)
			}
		}
		seen[secret] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d distinct secrets out of 100", len(seen))
	}
}

func TestGenerateChildUsername(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+\d{1,2}$`)

	for i := 0; i < 50; i++ {
		username, err := GenerateChildUsername()
		if err != nil {
			t.Fatalf("GenerateChildUsername() error = %v", err)
		}
		if !pattern.MatchString(username) {
			t.Errorf("username %q does not match adjective-nounNN", username)
		}
	}
}

func TestRandomElementEmpty(t *testing.T) {
	got, err := randomElement(nil)
	if err != nil || got != "" {
		t.Errorf("randomElement(nil) = %q, %v", got, err)
	}
}
