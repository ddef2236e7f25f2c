// Package report serializes calibration reports.
//
// The canonical, persisted form is versioned JSON produced by JSONWriter and
// WriteFile. It is a deterministic function of the report: no timestamps,
// fixed field order, and Go's shortest round-trip number formatting, so
// writing one report twice yields identical bytes and Decode reads back an
// equal report.
//
// Writers implement the Writer interface, which also covers the
// human-readable renderings:
//   - JSONWriter: canonical versioned JSON for archiving and diffing
//   - MarkdownWriter: GitHub-flavoured Markdown with tables and a chart
//   - SimpleWriter: plain text for terminal display
//
// WriteFile and WriteFileFormat commit atomically: the encoding is written to
// a temporary file next to the destination and renamed over it only after a
// successful write and sync. On failure the temporary file is removed and the
// destination keeps its previous contents.
package report
