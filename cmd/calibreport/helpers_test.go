package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// calibratedJSONLines has confidences that match the observed frequencies
// exactly with two equal-width bins.
const calibratedJSONLines = `{"confidence": 0.25, "outcome": true, "group": "a"}
{"confidence": 0.25, "outcome": false, "group": "a"}
{"confidence": 0.25, "outcome": false, "group": "b"}
{"confidence": 0.25, "outcome": false, "group": "b"}
{"confidence": 0.75, "outcome": true, "group": "a"}
{"confidence": 0.75, "outcome": true, "group": "a"}
{"confidence": 0.75, "outcome": true, "group": "b"}
{"confidence": 0.75, "outcome": false, "group": "b"}
`

// overconfidentJSONLines is wrong about everything it is confident in.
const overconfidentJSONLines = `{"confidence": 0.25, "outcome": true}
{"confidence": 0.25, "outcome": true}
{"confidence": 0.75, "outcome": false}
{"confidence": 0.75, "outcome": false}
`

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// emptyConfig writes an empty config file so tests never pick up a
// .calibreport from the working or home directory.
func emptyConfig(t *testing.T) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "calibreport.yaml", "")
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	cmd.SetArgs(append([]string{"--config", emptyConfig(t)}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
