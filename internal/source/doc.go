// Package source reads evaluation records from files and streams.
//
// Three encodings are supported: JSON Lines (one object per line), CSV with a
// confidence,outcome[,group] header, and a YAML sequence. Decoding is strict:
// unknown fields, missing values and malformed outcomes are reported as
// *model.InvalidRecordError carrying the 0-based index of the offending record.
package source
