package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes contents to path, creating parent directories.
func WriteFile(t testing.TB, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SampleSRT is a three cue caption file matching the sponsor scenario used
// across package tests.
const SampleSRT = `1
00:00:00,000 --> 00:00:05,000
Welcome back everyone

2
00:00:05,000 --> 00:00:15,000
This video is sponsored by Acme, use code SAVE10

3
00:00:15,000 --> 00:01:05,000
Now let's get into the main content
`
