package feed

import (
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/submissions"
	"github.com/CDeX-Labs/CDeX-Web-Client/pkg/events"
)

// Sink receives judged results.
type Sink interface {
	ApplyVerdict(v submissions.Verdict) bool
}

func VerdictFromJudged(e events.SubmissionJudgedEvent) submissions.Verdict {
	passed := e.Passed()
	score := float64(e.Score)
	return submissions.Verdict{
		SubmissionID: e.SubmissionID,
		Status:       &passed,
		Score:        &score,
	}
}
