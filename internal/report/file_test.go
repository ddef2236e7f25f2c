package report

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/calibreport/internal/builder"
	"github.com/nao1215/calibreport/internal/model"
)

// listDir returns the names of the entries in dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("writes the canonical encoding", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		if err := WriteFile(path, createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != emptyReportJSON {
			t.Errorf("file content mismatch:\n%s", data)
		}
	})

	t.Run("writing twice is byte identical", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first := filepath.Join(dir, "first.json")
		second := filepath.Join(dir, "second.json")
		if err := WriteFile(first, createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := WriteFile(second, createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		a, _ := os.ReadFile(first)
		b, _ := os.ReadFile(second)
		if !bytes.Equal(a, b) {
			t.Error("expected byte-identical files")
		}
	})

	t.Run("permuted input is byte identical", func(t *testing.T) {
		t.Parallel()

		rng := rand.New(rand.NewPCG(7, 11))
		records := make([]model.EvaluationRecord, 200)
		for i := range records {
			records[i] = model.EvaluationRecord{Confidence: rng.Float64(), Outcome: rng.IntN(2) == 1}
		}
		shuffled := append([]model.EvaluationRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		dir := t.TempDir()
		for _, strategy := range model.BinStrategies() {
			a, err := builder.Build(records, 7, strategy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b, err := builder.Build(shuffled, 7, strategy, builder.WithWorkers(4), builder.WithChunkSize(16))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			pa := filepath.Join(dir, "a-"+strategy.String()+".json")
			pb := filepath.Join(dir, "b-"+strategy.String()+".json")
			if err := WriteFile(pa, a); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := WriteFile(pb, b); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			da, _ := os.ReadFile(pa)
			db, _ := os.ReadFile(pb)
			if !bytes.Equal(da, db) {
				t.Errorf("%s: permuted input produced different bytes", strategy)
			}
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "deeper", "report.json")
		if err := WriteFile(path, createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("invalid report leaves previous file and no temp files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "report.json")
		if err := WriteFile(path, createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := WriteFile(path, createInvalidReport())
		if !errors.Is(err, ErrSerialization) {
			t.Fatalf("expected ErrSerialization, got %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != emptyReportJSON {
			t.Error("previous file content was modified")
		}
		if names := listDir(t, dir); len(names) != 1 {
			t.Errorf("expected only report.json, got %v", names)
		}
	})

	t.Run("invalid report creates nothing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "sub", "report.json")
		if err := WriteFile(path, createInvalidReport()); !errors.Is(err, ErrSerialization) {
			t.Fatalf("expected ErrSerialization, got %v", err)
		}
		if names := listDir(t, dir); len(names) != 0 {
			t.Errorf("expected empty directory, got %v", names)
		}
	})

	t.Run("destination is a directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "report.json")
		if err := os.Mkdir(path, 0o750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}

		err := WriteFile(path, createTestReport())
		if !errors.Is(err, ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			t.Fatalf("expected *IOError, got %T", err)
		}
		if ioErr.Path != path {
			t.Errorf("expected path %s, got %s", path, ioErr.Path)
		}
		if names := listDir(t, dir); len(names) != 1 {
			t.Errorf("expected temp file to be removed, got %v", names)
		}
	})

	t.Run("parent is a regular file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		parent := filepath.Join(dir, "blocker")
		if err := os.WriteFile(parent, []byte("x"), 0o600); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}

		err := WriteFile(filepath.Join(parent, "report.json"), createTestReport())
		if !errors.Is(err, ErrIO) {
			t.Errorf("expected ErrIO, got %v", err)
		}
	})
}

func TestWriteFileFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, `"format_version": 1`},
		{FormatMarkdown, "# Calibration Report"},
		{FormatText, "CALIBRATION REPORT"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "report"+tt.format.Extension())
			if err := WriteFileFormat(path, createTestReport(), tt.format); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("expected output to contain %q", tt.want)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		err := WriteFileFormat(filepath.Join(dir, "report.pdf"), createTestReport(), Format("pdf"))
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
		if names := listDir(t, dir); len(names) != 0 {
			t.Errorf("expected empty directory, got %v", names)
		}
	})
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("reads back an equal report", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		want := createTestReport()
		if err := WriteFile(path, want); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(want) {
			t.Error("round trip mismatch")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}
