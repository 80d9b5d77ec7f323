package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyManifestMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := verifyManifest(dir)
	if err == nil {
		t.Fatal("expected error for missing model files")
	}
}

func TestVerifyManifestHashMismatch(t *testing.T) {
	dir := t.TempDir()
	for _, entry := range modelManifest {
		if err := os.WriteFile(filepath.Join(dir, entry.filename), []byte("not the real model"), 0644); err != nil {
			t.Fatalf("write stub model: %v", err)
		}
	}

	err := verifyManifest(dir)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}
