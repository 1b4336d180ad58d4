package events

import "strings"

const (
	TopicSubmissionCreated = "submission.created"
	TopicSubmissionJudged  = "submission.judged"
)

const VerdictAccepted = "ACCEPTED"

type SubmissionCreatedEvent struct {
	SubmissionID string  `json:"submissionId"`
	UserID       string  `json:"userId"`
	ProblemID    string  `json:"problemId"`
	ContestID    *string `json:"contestId"`
	AssignmentID *string `json:"assignmentId"`
	Language     string  `json:"language"`
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
}

type SubmissionJudgedEvent struct {
	SubmissionID    string  `json:"submissionId"`
	UserID          string  `json:"userId"`
	ProblemID       string  `json:"problemId"`
	ContestID       *string `json:"contestId"`
	AssignmentID    *string `json:"assignmentId"`
	Verdict         string  `json:"verdict"`
	Score           int     `json:"score"`
	ExecutionTimeMs *int    `json:"executionTimeMs"`
	MemoryUsedKb    *int    `json:"memoryUsedKb"`
	TestCasesPassed int     `json:"testCasesPassed"`
	TestCasesTotal  int     `json:"testCasesTotal"`
	Timestamp       string  `json:"timestamp"`
}

// Passed reports whether the judge accepted the submission.
func (e SubmissionJudgedEvent) Passed() bool {
	return strings.EqualFold(e.Verdict, VerdictAccepted)
}
