// Package database provides SQLite-based storage for calibration reports.
//
// The archive keeps every saved report under a user-chosen name (a model, a
// dataset, a release) so that later builds can be compared against history.
// Reports are stored in their canonical JSON encoding together with the
// digest and a few summary columns for listing without decoding.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so the
// archive is a single file under the XDG data directory.
package database
