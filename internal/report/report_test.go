package report

import (
	"github.com/nao1215/calibreport/internal/model"
)

// createTestReport returns a valid two-bin report whose statistics are exact
// in binary floating point.
func createTestReport() *model.Report {
	return model.NewReport(model.ReportParams{
		RecordCount:              4,
		OverallAccuracy:          model.Some(0.75),
		ExpectedCalibrationError: 0.25,
		GeneratedWith: model.GeneratedWith{
			BinCount:    2,
			BinStrategy: model.EqualWidth,
		},
		Bins: []model.BinStat{
			{LowerBound: 0, UpperBound: 0.5, SampleCount: 2, MeanConfidence: model.Some(0.25), MeanAccuracy: model.Some(0.5)},
			{LowerBound: 0.5, UpperBound: 1, SampleCount: 2, MeanConfidence: model.Some(0.75), MeanAccuracy: model.Some(1)},
		},
	})
}

// createEmptyReport returns the report built from no records with two bins.
func createEmptyReport() *model.Report {
	return model.NewReport(model.ReportParams{
		GeneratedWith: model.GeneratedWith{
			BinCount:    2,
			BinStrategy: model.EqualWidth,
		},
		Bins: []model.BinStat{
			{LowerBound: 0, UpperBound: 0.5},
			{LowerBound: 0.5, UpperBound: 1},
		},
	})
}

// createInvalidReport returns a report whose sample counts do not add up.
func createInvalidReport() *model.Report {
	p := createTestReport().Params()
	p.RecordCount = 5
	return model.NewReport(p)
}
