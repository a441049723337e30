package cache

import (
	"strings"
	"testing"
	"time"
)

func TestBuildKey(t *testing.T) {
	a := buildKey("hiring:uk", "uk")
	b := buildKey("HIRING:UK", "UK")
	if a != b {
		t.Errorf("keys differ by case: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "jobalerts:hiring:uk:") {
		t.Errorf("key %q missing prefix", a)
	}
	if buildKey("hiring:uk", "us") == a {
		t.Error("different scopes share a key")
	}
}

func TestNewInvalidURL(t *testing.T) {
	if _, err := New("not-a-url", time.Minute); err == nil {
		t.Fatal("New() with bad URL should fail")
	}
}
