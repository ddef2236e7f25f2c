package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/calibreport/internal/model"
	"gopkg.in/yaml.v3"
)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 1024 * 1024

// rawRecord is the wire shape shared by the JSON and YAML decoders.
// Pointers distinguish a missing field from its zero value.
type rawRecord struct {
	Confidence *float64 `json:"confidence" yaml:"confidence"`
	Outcome    *bool    `json:"outcome" yaml:"outcome"`
	Group      string   `json:"group" yaml:"group"`
}

// record converts r into a validated record at position index.
func (r rawRecord) record(index int) (model.EvaluationRecord, error) {
	if r.Confidence == nil {
		return model.EvaluationRecord{}, missing(index, "confidence")
	}
	if r.Outcome == nil {
		return model.EvaluationRecord{}, missing(index, "outcome")
	}
	rec := model.EvaluationRecord{
		Confidence: *r.Confidence,
		Outcome:    *r.Outcome,
		GroupKey:   r.Group,
	}
	if err := validate(rec, index); err != nil {
		return model.EvaluationRecord{}, err
	}
	return rec, nil
}

// ReadFile reads records from path in the given format.
// An empty format is inferred from the file extension.
func ReadFile(path string, format Format) ([]model.EvaluationRecord, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	records, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read reads records from r in the given format.
func Read(r io.Reader, format Format) ([]model.EvaluationRecord, error) {
	switch format {
	case FormatJSONLines:
		return ReadJSONLines(r)
	case FormatCSV:
		return ReadCSV(r)
	case FormatYAML:
		return ReadYAML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ReadJSONLines reads one record per non-blank line.
// The record index counts records, not lines, so blank lines do not shift it.
func ReadJSONLines(r io.Reader) ([]model.EvaluationRecord, error) {
	var out []model.EvaluationRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		index := len(out)

		var raw rawRecord
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, malformed(index, err)
		}
		if dec.More() {
			return nil, malformed(index, errors.New("more than one value on the line"))
		}

		rec, err := raw.record(index)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSON lines: %w", err)
	}
	return out, nil
}

// ReadCSV reads records from CSV with a header naming the columns.
// The confidence and outcome columns are required, group is optional, and
// column order is free. Outcomes accept the forms strconv.ParseBool accepts.
func ReadCSV(r io.Reader) ([]model.EvaluationRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := csvColumns(header)
	if err != nil {
		return nil, err
	}

	var out []model.EvaluationRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		index := len(out)
		if err != nil {
			return nil, malformed(index, err)
		}

		rec, err := csvRecord(row, cols, index)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// csvLayout holds the column positions of a CSV header; group is -1 when absent.
type csvLayout struct {
	confidence, outcome, group int
}

func csvColumns(header []string) (csvLayout, error) {
	cols := csvLayout{confidence: -1, outcome: -1, group: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "confidence":
			cols.confidence = i
		case "outcome":
			cols.outcome = i
		case "group":
			cols.group = i
		default:
			return cols, fmt.Errorf("unknown CSV column %q", name)
		}
	}
	if cols.confidence < 0 || cols.outcome < 0 {
		return cols, errors.New("CSV header must name confidence and outcome columns")
	}
	return cols, nil
}

func csvRecord(row []string, cols csvLayout, index int) (model.EvaluationRecord, error) {
	confText := strings.TrimSpace(row[cols.confidence])
	if confText == "" {
		return model.EvaluationRecord{}, missing(index, "confidence")
	}
	confidence, err := strconv.ParseFloat(confText, 64)
	if err != nil {
		return model.EvaluationRecord{}, &model.InvalidRecordError{
			Index:  index,
			Field:  "confidence",
			Value:  confText,
			Reason: "is not a number",
		}
	}

	outText := strings.TrimSpace(row[cols.outcome])
	if outText == "" {
		return model.EvaluationRecord{}, missing(index, "outcome")
	}
	outcome, err := strconv.ParseBool(outText)
	if err != nil {
		return model.EvaluationRecord{}, &model.InvalidRecordError{
			Index:  index,
			Field:  "outcome",
			Value:  outText,
			Reason: "is not a boolean",
		}
	}

	rec := model.EvaluationRecord{Confidence: confidence, Outcome: outcome}
	if cols.group >= 0 {
		rec.GroupKey = row[cols.group]
	}
	if err := validate(rec, index); err != nil {
		return model.EvaluationRecord{}, err
	}
	return rec, nil
}

// ReadYAML reads a YAML sequence of records.
// An empty document yields no records.
func ReadYAML(r io.Reader) ([]model.EvaluationRecord, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seq := &root
	if seq.Kind == yaml.DocumentNode && len(seq.Content) > 0 {
		seq = seq.Content[0]
	}
	if seq.Kind == yaml.ScalarNode && seq.Tag == "!!null" {
		return nil, nil
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("failed to parse YAML: expected a sequence of records at line %d", seq.Line)
	}

	out := make([]model.EvaluationRecord, 0, len(seq.Content))
	for index, node := range seq.Content {
		if err := checkYAMLFields(node, index); err != nil {
			return nil, err
		}
		var raw rawRecord
		if err := node.Decode(&raw); err != nil {
			return nil, malformed(index, err)
		}
		rec, err := raw.record(index)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// checkYAMLFields rejects mapping keys other than the record fields.
func checkYAMLFields(node *yaml.Node, index int) error {
	if node.Kind != yaml.MappingNode {
		return malformed(index, fmt.Errorf("line %d: expected a mapping", node.Line))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch key := node.Content[i].Value; key {
		case "confidence", "outcome", "group":
		default:
			return &model.InvalidRecordError{
				Index:  index,
				Field:  key,
				Value:  node.Content[i+1].Value,
				Reason: "unknown field",
			}
		}
	}
	return nil
}

func validate(rec model.EvaluationRecord, index int) error {
	if err := rec.Validate(); err != nil {
		var recErr *model.InvalidRecordError
		if errors.As(err, &recErr) {
			return recErr.WithIndex(index)
		}
		return err
	}
	return nil
}

func missing(index int, field string) error {
	return &model.InvalidRecordError{
		Index:  index,
		Field:  field,
		Value:  "<missing>",
		Reason: "is required",
	}
}

func malformed(index int, err error) error {
	return &model.InvalidRecordError{
		Index:  index,
		Field:  "record",
		Value:  "<unparsable>",
		Reason: err.Error(),
	}
}
