package submissions

import "time"

// Phase is the reconciliation state of a submission in the local collection.
type Phase string

const (
	PhasePlaceholder Phase = "placeholder"
	PhaseConfirmed   Phase = "confirmed"
	PhaseFailed      Phase = "failed"
)

type Submission struct {
	ID               string    `json:"id"`
	CorrelationID    string    `json:"correlationId,omitempty"`
	ContestID        string    `json:"contestId"`
	OwnerID          string    `json:"ownerId"`
	Language         string    `json:"language"`
	Code             string    `json:"code,omitempty"`
	RepoURL          string    `json:"repoURL,omitempty"`
	Status           *bool     `json:"status"`
	Score            *float64  `json:"score"`
	CreatedAt        time.Time `json:"createdAt"`
	IsRepoSubmission bool      `json:"isRepoSubmission"`

	// Error is set on a placeholder whose submission failed.
	Error string `json:"error,omitempty"`
	Phase Phase  `json:"-"`
}

func (s Submission) Passed() bool {
	return s.Status != nil && *s.Status
}

func (s Submission) Failed() bool {
	return s.Status != nil && !*s.Status
}

func (s Submission) Pending() bool {
	return s.Score == nil
}

// Verdict is a judged result delivered by the live feed.
type Verdict struct {
	SubmissionID string
	Status       *bool
	Score        *float64
}

type Repository struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	ContestID string    `json:"contestId"`
	CreatedAt time.Time `json:"createdAt"`
}

// response is the body of POST /submissions. A 2xx body may still carry an
// error shape instead of a record.
type response struct {
	Submission
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func boolPtr(b bool) *bool {
	return &b
}

// clone copies s so the result shares no pointers with it.
func (s Submission) clone() Submission {
	if s.Status != nil {
		s.Status = boolPtr(*s.Status)
	}
	if s.Score != nil {
		score := *s.Score
		s.Score = &score
	}
	return s
}

func cloneSubmissions(list []Submission) []Submission {
	if list == nil {
		return nil
	}
	out := make([]Submission, len(list))
	for i, s := range list {
		out[i] = s.clone()
	}
	return out
}
