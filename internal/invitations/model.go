package invitations

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

type Invitation struct {
	ID        string    `json:"id"`
	ContestID string    `json:"contestID"`
	UserEmail string    `json:"userEmail,omitempty"`
	User      string    `json:"user,omitempty"`
	Status    Status    `json:"status"`
	InvitedBy string    `json:"invitedBy"`
	InvitedAt time.Time `json:"invitedAt"`
}

func (i Invitation) IsPending() bool {
	return i.Status == StatusPending
}

type ContestDetails struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

type InviterDetails struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// Enhanced is an invitation decorated with read-only lookups. Either detail
// may be nil when its lookup failed.
type Enhanced struct {
	Invitation
	ContestDetails *ContestDetails `json:"contestDetails,omitempty"`
	InviterDetails *InviterDetails `json:"inviterDetails,omitempty"`
}

type respondRequest struct {
	Accept bool `json:"accept"`
}
