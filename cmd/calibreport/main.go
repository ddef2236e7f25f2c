// Package main provides the entry point for the calibreport CLI.
//
// calibreport builds calibration (reliability) reports from prediction
// records: how well the confidence a model assigns to its predictions matches
// how often those predictions turn out to be right.
//
// Usage:
//
//	calibreport build scores.jsonl
//	calibreport compare base.json target.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
