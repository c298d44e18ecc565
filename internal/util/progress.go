package util

import "fmt"

// AnalysisProgress is the UI-facing progress view of a document's
// sequential analysis run.
type AnalysisProgress struct {
	Step       string `json:"step,omitempty"`
	Percentage int32  `json:"percentage"`
}

// BuildAnalysisProgress derives progress from analyzed/total chunk counts.
func BuildAnalysisProgress(analyzed, total int) AnalysisProgress {
	if total <= 0 {
		return AnalysisProgress{}
	}
	if analyzed > total {
		analyzed = total
	}

	progress := AnalysisProgress{
		Percentage: int32(analyzed * 100 / total),
	}
	if analyzed < total {
		progress.Step = fmt.Sprintf("analyzing %d/%d", analyzed+1, total)
	} else {
		progress.Step = "completed"
	}
	return progress
}
