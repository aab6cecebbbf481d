package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crmkit/leadmail/internal/gmail"
	"github.com/crmkit/leadmail/internal/logging"
	"github.com/crmkit/leadmail/internal/store"
)

// MailSender sends one email. *gmail.Gateway satisfies it.
type MailSender interface {
	Send(ctx context.Context, req *gmail.SendRequest) (*gmail.SendResult, error)
}

// LeadStore resolves lead ids to sendable leads.
type LeadStore interface {
	LeadsByIDs(ctx context.Context, ids []string) ([]*store.Lead, error)
}

// CampaignStore persists campaign state between batches.
type CampaignStore interface {
	SaveCampaign(ctx context.Context, c *store.Campaign) error
	Campaign(ctx context.Context, id string) (*store.Campaign, error)
	UpdateCampaignProgress(ctx context.Context, id string, sent, failed int64, at time.Time) error
}

// MetricsRecorder receives bulk and campaign outcomes. May be nil.
// *instrumentation.Metrics satisfies it.
type MetricsRecorder interface {
	RecordBulkRecipient(ctx context.Context, result string)
	RecordCampaignRun(ctx context.Context, status string)
}

// Outcome is the result of one recipient's send.
type Outcome struct {
	LeadID    string
	Email     string
	MessageID string
	Err       error
}

// Result summarizes a bulk run.
type Result struct {
	Sent     int
	Failed   int
	Outcomes []Outcome
}

// BulkRequest describes a bulk send. Subject and Body may carry
// {{token}} placeholders; they are personalized per lead. CampaignID is
// set by campaign runs and tags each send's audit record.
type BulkRequest struct {
	UserID     string
	CampaignID string
	Subject    string
	Body       string
	IsHTML     bool
	LeadIDs    []string
}

// Runner executes bulk sends sequentially: recipients are processed in
// batches, message k waits k delay units before sending, and each
// recipient's outcome is independent of the others.
type Runner struct {
	sender    MailSender
	leads     LeadStore
	campaigns CampaignStore
	batchSize int
	delayUnit time.Duration
	logger    *slog.Logger
	metrics   MetricsRecorder

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRunner builds a Runner. batchSize and delayUnit below their
// minimums fall back to 1 message and no delay.
func NewRunner(sender MailSender, leads LeadStore, campaigns CampaignStore,
	batchSize int, delayUnit time.Duration, logger *slog.Logger) *Runner {
	if batchSize < 1 {
		batchSize = 1
	}
	if delayUnit < 0 {
		delayUnit = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sender:    sender,
		leads:     leads,
		campaigns: campaigns,
		batchSize: batchSize,
		delayUnit: delayUnit,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// SetMetrics attaches a metrics recorder for bulk and campaign outcomes.
func (r *Runner) SetMetrics(m MetricsRecorder) { r.metrics = m }

// BulkSend personalizes and sends the message to every resolvable lead.
// Leads without an email address are skipped silently. The returned
// result covers every attempted recipient even when ctx is cancelled
// midway; in that case the context error is returned alongside it.
func (r *Runner) BulkSend(ctx context.Context, req *BulkRequest) (*Result, error) {
	leads, err := r.leads.LeadsByIDs(ctx, req.LeadIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve leads: %w", err)
	}

	result := &Result{}
	delay := 0
	for start := 0; start < len(leads); start += r.batchSize {
		end := min(start+r.batchSize, len(leads))
		if err := r.sendBatch(ctx, req, leads[start:end], &delay, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// sendBatch sends one batch, appending outcomes and advancing the
// global delay counter. Only context cancellation aborts the batch.
func (r *Runner) sendBatch(ctx context.Context, req *BulkRequest, batch []*store.Lead,
	delay *int, result *Result) error {
	for _, lead := range batch {
		if *delay > 0 {
			if err := r.sleep(ctx, time.Duration(*delay)*r.delayUnit); err != nil {
				return err
			}
		}

		res, err := r.sender.Send(ctx, &gmail.SendRequest{
			UserID:     req.UserID,
			LeadID:     lead.ID,
			CampaignID: req.CampaignID,
			To:         []string{lead.Email},
			Subject:    Personalize(req.Subject, lead),
			Body:       Personalize(req.Body, lead),
			IsHTML:     req.IsHTML,
		})

		outcome := Outcome{LeadID: lead.ID, Email: lead.Email}
		recipientResult := store.LogStatusSent
		if err != nil {
			outcome.Err = err
			result.Failed++
			recipientResult = store.LogStatusFailed
			r.logger.Warn("bulk recipient failed",
				logging.LeadID(lead.ID), logging.Recipient(lead.Email), logging.Err(err))
		} else {
			outcome.MessageID = res.MessageID
			result.Sent++
		}
		if r.metrics != nil {
			r.metrics.RecordBulkRecipient(ctx, recipientResult)
		}
		result.Outcomes = append(result.Outcomes, outcome)
		*delay++
	}
	return nil
}

// RunCampaign executes a runnable campaign: marks it sending, works
// through its audience batch by batch, keeps its counters current, and
// finishes it as completed. A cancellation stored between batches stops
// the run and leaves the campaign cancelled.
func (r *Runner) RunCampaign(ctx context.Context, campaignID string) (*Result, error) {
	c, err := r.campaigns.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != store.CampaignDraft && c.Status != store.CampaignScheduled {
		return nil, fmt.Errorf("campaign %s is %s and cannot be run", c.ID, c.Status)
	}

	leads, err := r.leads.LeadsByIDs(ctx, c.Audience)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	startedAt := r.now()
	c.Status = store.CampaignSending
	c.StartedAt = &startedAt
	c.TotalRecipients = int64(len(leads))
	if err := r.campaigns.SaveCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("start campaign: %w", err)
	}
	r.logger.Info("campaign started",
		slog.String("campaign_id", c.ID),
		logging.UserID(c.Sender),
		slog.Int("recipients", len(leads)))

	req := &BulkRequest{UserID: c.Sender, CampaignID: c.ID, Subject: c.Subject, Body: c.Content}
	result := &Result{}
	delay := 0
	cancelled := false

	for start := 0; start < len(leads); start += r.batchSize {
		if start > 0 {
			// A cancel issued while we were sending takes effect at the
			// next batch boundary.
			if current, err := r.campaigns.Campaign(ctx, c.ID); err == nil &&
				current.Status == store.CampaignCancelled {
				cancelled = true
				break
			}
		}

		end := min(start+r.batchSize, len(leads))
		batchErr := r.sendBatch(ctx, req, leads[start:end], &delay, result)

		c.SentCount = int64(result.Sent)
		c.FailedCount = int64(result.Failed)
		processedAt := r.now()
		c.LastProcessedAt = &processedAt
		if err := r.campaigns.UpdateCampaignProgress(ctx, c.ID,
			c.SentCount, c.FailedCount, processedAt); err != nil {
			r.logger.Error("failed to checkpoint campaign",
				slog.String("campaign_id", c.ID), logging.Err(err))
		}
		if batchErr != nil {
			return result, batchErr
		}
	}

	if !cancelled {
		// A cancel during the final batch still wins.
		if current, err := r.campaigns.Campaign(ctx, c.ID); err == nil &&
			current.Status == store.CampaignCancelled {
			cancelled = true
		}
	}
	if cancelled {
		c.Status = store.CampaignCancelled
	} else {
		completedAt := r.now()
		c.Status = store.CampaignCompleted
		c.CompletedAt = &completedAt
		if err := r.campaigns.SaveCampaign(ctx, c); err != nil {
			return result, fmt.Errorf("complete campaign: %w", err)
		}
	}
	if r.metrics != nil {
		r.metrics.RecordCampaignRun(ctx, c.Status)
	}
	r.logger.Info("campaign finished",
		slog.String("campaign_id", c.ID),
		logging.Status(c.Status),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
