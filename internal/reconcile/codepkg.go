package reconcile

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lamctl/lamctl/internal/ir"
)

// zipEpoch is the fixed timestamp stamped on generated archive entries so
// that identical source always produces an identical archive, and therefore
// an identical content hash.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// packageBytes resolves the function's code source to zip archive bytes.
// Inline code and non-zip local files are wrapped into a deterministic
// single-file archive. An S3 code source has no local bytes and yields nil.
// In check mode a missing local file is tolerated and treated as empty.
func packageBytes(fn *ir.Function, checkMode bool) ([]byte, error) {
	switch {
	case fn.Code != "":
		return buildZip([]byte(fn.Code))
	case fn.LocalPath != "":
		contents, err := os.ReadFile(fn.LocalPath)
		if err != nil {
			if checkMode && os.IsNotExist(err) {
				contents = nil
			} else {
				return nil, fmt.Errorf("reading %s: %w", fn.LocalPath, err)
			}
		}
		if filepath.Ext(fn.LocalPath) == ".zip" {
			return contents, nil
		}
		return buildZip(contents)
	default:
		return nil, nil
	}
}

// buildZip wraps code into a zip archive holding a single world-accessible
// lambda_function.py entry with a fixed timestamp.
func buildZip(code []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	header := &zip.FileHeader{
		Name:     "lambda_function.py",
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	header.SetMode(0o777)
	entry, err := w.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("creating archive entry: %w", err)
	}
	if _, err := entry.Write(code); err != nil {
		return nil, fmt.Errorf("writing archive entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// codeSha256 hashes archive bytes the way the Lambda API reports CodeSha256:
// base64 of the raw sha256 digest.
func codeSha256(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
