package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	Version, GitCommit = "v9.9.9", "abc123"
	info := Info()
	for _, want := range []string{"v9.9.9", "abc123", runtime.Version()} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() = %q, missing %q", info, want)
		}
	}
}
