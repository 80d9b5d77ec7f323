package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// manifestEntry pins a model file to its expected content hash.
type manifestEntry struct {
	filename string
	sha256   string
}

// modelManifest lists every file the daemon requires before it will
// register on the bus. Hashes are pinned so a swapped-in model — valid
// ONNX, different weights — cannot silently change authentication
// behavior without a startup failure.
var modelManifest = []manifestEntry{
	{filename: "det_10g.onnx", sha256: "5838f7fe053675b1c7a08b633df49e7af5495cee0493c7dcf6697200b85b5b91"},
	{filename: "w600k_r50.onnx", sha256: "4c06341c33c2ca1f86781dab0e829f88ad5b64be9fba56e56bc9ebdefc619e43"},
}

// verifyManifest reads and hashes every manifest entry under modelDir,
// failing closed on the first missing file, unreadable file, or hash
// mismatch.
func verifyManifest(modelDir string) error {
	for _, entry := range modelManifest {
		path := filepath.Join(modelDir, entry.filename)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("model file %s: %w (re-download models into %s)", path, err, modelDir)
		}

		h := sha256.New()
		_, copyErr := io.Copy(h, f)
		_ = f.Close()
		if copyErr != nil {
			return fmt.Errorf("model file %s: read failed: %w", path, copyErr)
		}

		actual := hex.EncodeToString(h.Sum(nil))
		if actual != entry.sha256 {
			return fmt.Errorf(
				"model checksum mismatch for %s: expected %s, got %s (re-download models into %s)",
				path, entry.sha256, actual, modelDir,
			)
		}
	}
	return nil
}
