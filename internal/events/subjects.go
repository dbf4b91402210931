package events

const (
	SubjectRankingWildcard = "pipeselect.ranking.>"

	StreamName   = "PIPESELECT_RANKINGS"
	StreamMaxAge = "168h" // 7 days
)

func SubjectRankingCompleted(runID string) string { return "pipeselect.ranking." + runID + ".completed" }
func SubjectRankingRejected(runID string) string  { return "pipeselect.ranking." + runID + ".rejected" }
