package service

import (
	"path/filepath"
	"testing"
)

func TestFreeDiskSpace(t *testing.T) {
	free, err := freeDiskSpace(t.TempDir())
	if err != nil {
		t.Fatalf("freeDiskSpace failed: %v", err)
	}
	if free <= 0 {
		t.Errorf("free = %d, want positive", free)
	}

	if _, err := freeDiskSpace(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
