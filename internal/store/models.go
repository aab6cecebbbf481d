package store

import "time"

// Credential is the stored OAuth token set for one user/provider pair.
// At most one row exists per (UserID, Provider).
type Credential struct {
	UserID         string
	Provider       string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	Connected      bool
	ProviderEmail  string
	ProviderUserID string
	UpdatedAt      time.Time
}

// Lead is a CRM lead record. Only the fields emails are addressed to
// and personalized with live here.
type Lead struct {
	ID              string
	FullName        string
	Email           string
	Company         string
	Position        string
	Location        string
	LastContactedAt *time.Time
}

// Send log statuses.
const (
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)

// EmailLog records one send attempt, successful or not.
type EmailLog struct {
	ID           int64
	LeadID       string // empty for custom sends
	UserID       string
	ToEmail      string
	Subject      string
	Body         string
	MessageID    string
	Status       string
	ErrorMessage string
	SentAt       time.Time
}

// LogFilter narrows send-log listings.
type LogFilter struct {
	LeadID string
	Status string
	Search string
	Limit  int
	Offset int
}

// LogStats aggregates a user's send history.
type LogStats struct {
	TotalSent   int64
	TotalFailed int64
	SuccessRate float64
	LastSentAt  *time.Time
}

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignCompleted = "completed"
	CampaignCancelled = "cancelled"
)

// Campaign is a bulk-send run over a fixed audience of leads.
type Campaign struct {
	ID              string
	Name            string
	Subject         string
	Content         string
	Audience        []string // lead IDs
	Status          string
	Sender          string // user ID
	SentCount       int64
	FailedCount     int64
	TotalRecipients int64
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	LastProcessedAt *time.Time
	ErrorMessage    string
	CreatedAt       time.Time
}

// CanBeCancelled reports whether the campaign is still in a state that
// allows cancellation.
func (c *Campaign) CanBeCancelled() bool {
	switch c.Status {
	case CampaignDraft, CampaignScheduled, CampaignSending:
		return true
	}
	return false
}

// CanBeUpdated reports whether the campaign content may still change.
func (c *Campaign) CanBeUpdated() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// Progress returns the processed fraction of the audience as a percentage.
func (c *Campaign) Progress() float64 {
	if c.TotalRecipients == 0 {
		return 0
	}
	processed := c.SentCount + c.FailedCount
	return float64(processed) / float64(c.TotalRecipients) * 100
}
