package model

// Grade ranks how far a report is from perfect calibration.
// Grades are ordered, so they can be compared with < and >.
type Grade int

const (
	// GradeUngraded is used for reports without records.
	GradeUngraded Grade = iota

	// GradeWell means the expected calibration error is below 0.02.
	GradeWell

	// GradeSlight means an ECE in [0.02, 0.05).
	GradeSlight

	// GradeModerate means an ECE in [0.05, 0.15).
	GradeModerate

	// GradeSevere means an ECE of 0.15 or more.
	GradeSevere
)

// ECE lower bounds of the graded levels.
const (
	SlightThreshold   = 0.02
	ModerateThreshold = 0.05
	SevereThreshold   = 0.15
)

// String returns a human-readable representation of the grade.
func (g Grade) String() string {
	switch g {
	case GradeUngraded:
		return "UNGRADED"
	case GradeWell:
		return "WELL"
	case GradeSlight:
		return "SLIGHT"
	case GradeModerate:
		return "MODERATE"
	case GradeSevere:
		return "SEVERE"
	default:
		return "UNKNOWN"
	}
}

// GradeOf grades an expected calibration error.
func GradeOf(ece float64) Grade {
	switch {
	case ece >= SevereThreshold:
		return GradeSevere
	case ece >= ModerateThreshold:
		return GradeModerate
	case ece >= SlightThreshold:
		return GradeSlight
	default:
		return GradeWell
	}
}

// Grade grades the report. Reports without records are ungraded.
func (r *Report) Grade() Grade {
	if r.recordCount == 0 {
		return GradeUngraded
	}
	return GradeOf(r.expectedCalibrationError)
}

// GradeInfo describes a grade for people reading a report.
type GradeInfo struct {
	Summary        string
	Recommendation string
}

var gradeInfoMapping = map[Grade]GradeInfo{
	GradeUngraded: {
		Summary:        "No records were supplied; every bin is empty.",
		Recommendation: "Check that the input holds predictions.",
	},
	GradeWell: {
		Summary:        "Well calibrated.",
		Recommendation: "Confidences can be read as probabilities.",
	},
	GradeSlight: {
		Summary:        "Slightly miscalibrated.",
		Recommendation: "Watch the largest gaps; a larger sample may settle them.",
	},
	GradeModerate: {
		Summary:        "Noticeably miscalibrated.",
		Recommendation: "Consider recalibrating, for example with temperature scaling or isotonic regression.",
	},
	GradeSevere: {
		Summary:        "Severely miscalibrated.",
		Recommendation: "Do not use the confidences as probabilities until the model is recalibrated.",
	},
}

// GetGradeInfo returns the description of a grade.
func GetGradeInfo(g Grade) GradeInfo {
	if info, ok := gradeInfoMapping[g]; ok {
		return info
	}
	return GradeInfo{
		Summary:        "Unknown grade.",
		Recommendation: "Review the report manually.",
	}
}
