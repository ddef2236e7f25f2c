package pipeline

import "errors"

var (
	// ErrNoReport is returned when a step needs a report that was never built.
	ErrNoReport = errors.New("no report built")

	// ErrDuplicateOutput is returned when a report would replace a file
	// already written by the same batch.
	ErrDuplicateOutput = errors.New("duplicate output path")

	// ErrGroupedJSONStream is returned when group reports would be appended
	// to a JSON report on a stream, which no reader can split apart again.
	ErrGroupedJSONStream = errors.New("group reports in JSON need a file destination")
)
