package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/calibreport/internal/model"
)

const (
	// dirPermission is applied to destination directories created on demand.
	dirPermission = 0o750

	// filePermission is applied to committed report files.
	filePermission = 0o644
)

// WriteFile persists report at path in the canonical JSON encoding.
//
// The report is validated and encoded in memory before anything touches the
// filesystem. The bytes are then committed atomically: readers of path see
// either the previous content or the complete new document.
func WriteFile(path string, report *model.Report) error {
	return WriteFileFormat(path, report, FormatJSON)
}

// WriteFileFormat renders report in format and commits it atomically to path.
// Missing parent directories are created.
func WriteFileFormat(path string, report *model.Report, format Format) error {
	var buf bytes.Buffer
	w, err := NewWriter(format, &buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(report); err != nil {
		return err
	}
	return commitFile(path, buf.Bytes())
}

// ReadFile reads a report previously written by WriteFile.
func ReadFile(path string) (*model.Report, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	report, err := decodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// commitFile writes data to a temporary sibling of path and renames it into
// place. On any failure the temporary file is removed and path is untouched.
func commitFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return &IOError{Op: "create directory", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp file", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err = os.Chmod(tmpName, filePermission); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
