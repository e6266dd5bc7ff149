package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	if Version == "" || BuildTime == "" || GitCommit == "" {
		t.Fatal("build metadata should be initialized")
	}
	s := String()
	if !strings.HasPrefix(s, "assetpipe ") || !strings.Contains(s, GitCommit) {
		t.Errorf("unexpected version string %q", s)
	}
}
