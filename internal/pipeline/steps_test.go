package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/calibreport/internal/database"
	"github.com/nao1215/calibreport/internal/metrics"
	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
	"github.com/nao1215/calibreport/internal/source"
)

const testJSONLines = `{"confidence": 0.2, "outcome": false, "group": "cats"}
{"confidence": 0.3, "outcome": true, "group": "cats"}
{"confidence": 0.7, "outcome": true, "group": "dogs"}
{"confidence": 0.8, "outcome": true}
`

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

// builtRun returns a run that has been through LoadStep and BuildStep.
func builtRun(t *testing.T, byGroup bool) *Run {
	t.Helper()
	run := NewRun(writeInput(t, "scores.jsonl", testJSONLines), "")
	p := New()
	p.AddSteps(NewLoadStep(), NewBuildStep(2, model.EqualWidth, WithGroups(byGroup)))
	if err := p.Execute(context.Background(), run); err != nil {
		t.Fatalf("failed to build run: %v", err)
	}
	return run
}

func TestLoadStep(t *testing.T) {
	t.Parallel()

	t.Run("infers the format from the extension", func(t *testing.T) {
		t.Parallel()

		run := NewRun(writeInput(t, "scores.jsonl", testJSONLines), "")
		if err := NewLoadStep().Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Records) != 4 {
			t.Errorf("expected 4 records, got %d", len(run.Records))
		}
	})

	t.Run("honours an explicit format", func(t *testing.T) {
		t.Parallel()

		run := NewRun(writeInput(t, "scores.txt", "confidence,outcome\n0.5,true\n"), "")
		step := NewLoadStep(WithInputFormat(source.FormatCSV))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Records) != 1 || !run.Records[0].Outcome {
			t.Errorf("unexpected records: %+v", run.Records)
		}
	})

	t.Run("reads stdin as JSON Lines by default", func(t *testing.T) {
		t.Parallel()

		run := NewRun(StdinInput, "")
		step := NewLoadStep(WithStdin(strings.NewReader(testJSONLines)))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Records) != 4 {
			t.Errorf("expected 4 records, got %d", len(run.Records))
		}
	})

	t.Run("reports invalid records", func(t *testing.T) {
		t.Parallel()

		run := NewRun(writeInput(t, "bad.jsonl", `{"confidence": 1.5, "outcome": true}`+"\n"), "")
		err := NewLoadStep().Do(context.Background(), run)

		var recErr *model.InvalidRecordError
		if !errors.As(err, &recErr) {
			t.Fatalf("expected InvalidRecordError, got %v", err)
		}
	})

	t.Run("rejects an unknown extension", func(t *testing.T) {
		t.Parallel()

		run := NewRun(writeInput(t, "scores.bin", ""), "")
		err := NewLoadStep().Do(context.Background(), run)
		if !errors.Is(err, source.ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})
}

func TestBuildStep(t *testing.T) {
	t.Parallel()

	t.Run("builds the overall report", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, false)

		if run.Report == nil {
			t.Fatal("expected a report")
		}
		if run.Report.RecordCount() != 4 {
			t.Errorf("RecordCount = %d, want 4", run.Report.RecordCount())
		}
		if len(run.Groups) != 0 {
			t.Errorf("expected no groups, got %d", len(run.Groups))
		}
	})

	t.Run("builds group reports", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, true)

		keys := make([]string, 0, len(run.Groups))
		for _, g := range run.Groups {
			keys = append(keys, g.Key)
		}
		want := []string{"", "cats", "dogs"}
		if strings.Join(keys, ",") != strings.Join(want, ",") {
			t.Errorf("group keys = %q, want %q", keys, want)
		}
	})

	t.Run("builds an empty report from no records", func(t *testing.T) {
		t.Parallel()

		run := NewRun("empty.jsonl", "")
		if err := NewBuildStep(3, model.EqualCount).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.Report.RecordCount() != 0 || run.Report.NumBins() != 3 {
			t.Errorf("unexpected empty report: %d records, %d bins", run.Report.RecordCount(), run.Report.NumBins())
		}
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		t.Parallel()

		err := NewBuildStep(0, model.EqualWidth).Do(context.Background(), NewRun("x.jsonl", ""))

		var cfgErr *model.InvalidConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected InvalidConfigurationError, got %v", err)
		}
	})
}

func TestWriteStep(t *testing.T) {
	t.Parallel()

	t.Run("writes to an explicit file", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, false)
		path := filepath.Join(t.TempDir(), "out", "report.json")

		if err := NewWriteStep(report.FormatJSON, WithOutputFile(path)).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := report.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read back: %v", err)
		}
		if !got.Equal(run.Report) {
			t.Error("written report differs from the built one")
		}
		if len(run.Outputs) != 1 || run.Outputs[0] != path {
			t.Errorf("Outputs = %v", run.Outputs)
		}
	})

	t.Run("writes into a directory with group files", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, true)
		dir := t.TempDir()

		if err := NewWriteStep(report.FormatMarkdown, WithOutputDir(dir)).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, name := range []string{"scores.md", "scores.ungrouped.md", "scores.group-cats.md", "scores.group-dogs.md"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
		if len(run.Outputs) != 4 {
			t.Errorf("expected 4 outputs, got %d", len(run.Outputs))
		}
	})

	t.Run("writes to the stream", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, true)
		var buf bytes.Buffer

		if err := NewWriteStep(report.FormatText, WithStdout(&buf, nil)).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "CALIBRATION REPORT") {
			t.Error("expected the text report")
		}
		if !strings.Contains(out, "--- group: (ungrouped) ---") || !strings.Contains(out, `--- group: "dogs" ---`) {
			t.Errorf("expected group separators, got:\n%s", out)
		}
	})

	t.Run("concurrent stream writes do not interleave", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, false)
		var buf bytes.Buffer
		var mu sync.Mutex

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				step := NewWriteStep(report.FormatJSON, WithStdout(&buf, &mu))
				if err := step.Do(context.Background(), run); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		encoded, err := report.Encode(run.Report)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if buf.String() != strings.Repeat(string(encoded), 4) {
			t.Error("stream output is interleaved")
		}
	})

	t.Run("keeps an ungrouped group apart from a group named ungrouped", func(t *testing.T) {
		t.Parallel()

		input := writeInput(t, "r.jsonl", `{"confidence": 0.2, "outcome": false}
{"confidence": 0.7, "outcome": true, "group": "ungrouped"}
{"confidence": 0.9, "outcome": true, "group": "ungrouped"}
`)
		run := NewRun(input, "")
		p := New()
		p.AddSteps(NewLoadStep(), NewBuildStep(2, model.EqualWidth, WithGroups(true)))
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dir := t.TempDir()
		if err := NewWriteStep(report.FormatJSON, WithOutputDir(dir)).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 3 || len(run.Outputs) != 3 {
			t.Fatalf("expected 3 distinct files, got %d on disk and outputs %v", len(entries), run.Outputs)
		}
		ungrouped, err := report.ReadFile(filepath.Join(dir, "r.ungrouped.json"))
		if err != nil {
			t.Fatalf("read ungrouped: %v", err)
		}
		named, err := report.ReadFile(filepath.Join(dir, "r.group-ungrouped.json"))
		if err != nil {
			t.Fatalf("read named group: %v", err)
		}
		if ungrouped.RecordCount() != 1 || named.RecordCount() != 2 {
			t.Errorf("got %d and %d records, expected 1 and 2", ungrouped.RecordCount(), named.RecordCount())
		}
	})

	t.Run("refuses to replace a file claimed by another run", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		claims := NewOutputClaims()
		first := builtRun(t, false)
		second := builtRun(t, false)
		second.Input = filepath.Join("other", filepath.Base(first.Input))

		if err := NewWriteStep(report.FormatJSON, WithOutputDir(dir), WithOutputClaims(claims)).Do(context.Background(), first); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := NewWriteStep(report.FormatJSON, WithOutputDir(dir), WithOutputClaims(claims)).Do(context.Background(), second)
		if !errors.Is(err, ErrDuplicateOutput) {
			t.Errorf("expected ErrDuplicateOutput, got %v", err)
		}
		if len(second.Outputs) != 0 {
			t.Errorf("expected no outputs for the rejected run, got %v", second.Outputs)
		}
	})

	t.Run("rejects group reports in a JSON stream", func(t *testing.T) {
		t.Parallel()

		run := builtRun(t, true)
		var buf bytes.Buffer

		err := NewWriteStep(report.FormatJSON, WithStdout(&buf, nil)).Do(context.Background(), run)
		if !errors.Is(err, ErrGroupedJSONStream) {
			t.Errorf("expected ErrGroupedJSONStream, got %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("expected nothing written, got %q", buf.String())
		}
	})

	t.Run("requires a report", func(t *testing.T) {
		t.Parallel()

		err := NewWriteStep(report.FormatJSON).Do(context.Background(), NewRun("x.jsonl", ""))
		if !errors.Is(err, ErrNoReport) {
			t.Errorf("expected ErrNoReport, got %v", err)
		}
	})
}

func TestGroupPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{key: "", want: "out/r.ungrouped.json"},
		{key: "ungrouped", want: "out/r.group-ungrouped.json"},
		{key: "cats", want: "out/r.group-cats.json"},
		{key: "a/b", want: "out/r.group-a%2Fb.json"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			if got := GroupPath("out/r.json", tt.key); got != tt.want {
				t.Errorf("GroupPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchiveStep(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	run := builtRun(t, false)
	run.Name = "nightly"

	if err := NewArchiveStep(db, nil).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Saved == nil || run.Saved.Name != "nightly" {
		t.Fatalf("unexpected saved metadata: %+v", run.Saved)
	}

	stored, err := db.GetLatestReport(context.Background(), "nightly")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if !stored.Report.Equal(run.Report) {
		t.Error("archived report differs from the built one")
	}

	if err := NewArchiveStep(db, nil).Do(context.Background(), NewRun("x", "")); !errors.Is(err, ErrNoReport) {
		t.Errorf("expected ErrNoReport, got %v", err)
	}
}

func TestMetricsStep(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewRecorder()
	run := builtRun(t, true)

	if err := NewMetricsStep(recorder).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "calibreport.prom")
	if err := recorder.WriteTextfile(path); err != nil {
		t.Fatalf("failed to write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	for _, want := range []string{`report="scores"`, `report="scores/\"cats\""`, `report="scores/(ungrouped)"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestFullPipeline(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	recorder := metrics.NewRecorder()
	outDir := t.TempDir()

	bp := NewBatchProcessor(func() *Pipeline {
		p := New()
		p.AddSteps(
			NewLoadStep(),
			NewBuildStep(4, model.EqualCount, WithBuildWorkers(2)),
			NewWriteStep(report.FormatJSON, WithOutputDir(outDir)),
			NewArchiveStep(db, nil),
			NewMetricsStep(recorder),
		)
		return p
	}, WithConcurrency(2))

	inputs := []string{
		writeInput(t, "a.jsonl", testJSONLines),
		writeInput(t, "b.csv", "confidence,outcome\n0.9,true\n0.1,false\n"),
		writeInput(t, "c.yaml", "- {confidence: 1.5, outcome: true}\n"),
	}

	runs, err := bp.ProcessBatch(context.Background(), inputs)
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}

	for _, run := range runs[:2] {
		if run.Failed() {
			t.Fatalf("%s failed: %v", run.Input, run.Err)
		}
		if len(run.PerformedSteps) != 5 {
			t.Errorf("%s performed %v", run.Input, run.PerformedSteps)
		}
	}
	if !runs[2].Failed() {
		t.Error("invalid input should fail")
	}

	names, err := db.ListNames(context.Background())
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("archived names = %v, want [a b]", names)
	}
	if _, err := os.Stat(filepath.Join(outDir, "c.json")); !os.IsNotExist(err) {
		t.Error("failed input must not produce an output file")
	}
}

func TestOutputClaims(t *testing.T) {
	t.Parallel()

	t.Run("rejects a path claimed before", func(t *testing.T) {
		t.Parallel()

		c := NewOutputClaims()
		if err := c.Claim("a/x.jsonl", "out/x.json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := c.Claim("b/x.jsonl", "out/./x.json")
		if !errors.Is(err, ErrDuplicateOutput) || !strings.Contains(err.Error(), "a/x.jsonl") {
			t.Errorf("expected ErrDuplicateOutput naming the first input, got %v", err)
		}
	})

	t.Run("rejects a path repeated in one claim and keeps nothing", func(t *testing.T) {
		t.Parallel()

		c := NewOutputClaims()
		if err := c.Claim("x.jsonl", "out/x.json", "out/x.json"); !errors.Is(err, ErrDuplicateOutput) {
			t.Errorf("expected ErrDuplicateOutput, got %v", err)
		}
		if err := c.Claim("y.jsonl", "out/x.json"); err != nil {
			t.Errorf("failed claim should reserve nothing, got %v", err)
		}
	})
}

func TestCheckOutputNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		inputs  []string
		wantErr bool
	}{
		{name: "distinct names", inputs: []string{"a/x.jsonl", "a/y.jsonl"}},
		{name: "same name in two directories", inputs: []string{"a/x.jsonl", "b/x.jsonl"}, wantErr: true},
		{name: "same stem with another extension", inputs: []string{"x.jsonl", "x.csv"}, wantErr: true},
		{name: "stdin and a file named stdin", inputs: []string{"-", "stdin.jsonl"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckOutputNames(tt.inputs)
			if tt.wantErr != errors.Is(err, ErrDuplicateOutput) {
				t.Errorf("CheckOutputNames(%v) = %v, wantErr %v", tt.inputs, err, tt.wantErr)
			}
		})
	}
}
