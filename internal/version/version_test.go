package version

import (
	"strings"
	"testing"
)

func TestUserAgentCarriesVersion(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "1.2.3"
	if got := UserAgent(); got != "tpalerts/1.2.3" {
		t.Fatalf("unexpected user agent %q", got)
	}
	if !strings.HasPrefix(String(), "version: 1.2.3\n") {
		t.Fatalf("unexpected build info %q", String())
	}
}
