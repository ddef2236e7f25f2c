// Package config provides configuration structures and utilities for calibreport.
// It defines the report generation defaults, output and archive settings, and
// the layered loader that merges a .calibreport file and CALIBREPORT_*
// environment variables over those defaults.
package config
