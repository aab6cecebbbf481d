package campaign

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/crmkit/leadmail/internal/gmail"
	"github.com/crmkit/leadmail/internal/store"
)

type fakeSender struct {
	requests []*gmail.SendRequest
	failFor  map[string]error // keyed by lead id
}

func (f *fakeSender) Send(_ context.Context, req *gmail.SendRequest) (*gmail.SendResult, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.failFor[req.LeadID]; ok {
		return nil, err
	}
	return &gmail.SendResult{MessageID: "msg-" + req.LeadID}, nil
}

type fakeLeads struct {
	leads []*store.Lead
}

func (f *fakeLeads) LeadsByIDs(_ context.Context, ids []string) ([]*store.Lead, error) {
	byID := make(map[string]*store.Lead)
	for _, l := range f.leads {
		byID[l.ID] = l
	}
	var out []*store.Lead
	for _, id := range ids {
		if l, ok := byID[id]; ok && l.Email != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeCampaigns struct {
	campaigns map[string]*store.Campaign
	saves     []string // statuses in save order
}

func newFakeCampaigns(cs ...*store.Campaign) *fakeCampaigns {
	f := &fakeCampaigns{campaigns: make(map[string]*store.Campaign)}
	for _, c := range cs {
		cp := *c
		f.campaigns[c.ID] = &cp
	}
	return f
}

func (f *fakeCampaigns) SaveCampaign(_ context.Context, c *store.Campaign) error {
	cp := *c
	f.campaigns[c.ID] = &cp
	f.saves = append(f.saves, c.Status)
	return nil
}

func (f *fakeCampaigns) UpdateCampaignProgress(_ context.Context, id string, sent, failed int64, at time.Time) error {
	c, ok := f.campaigns[id]
	if !ok {
		return store.ErrNotFound
	}
	c.SentCount = sent
	c.FailedCount = failed
	c.LastProcessedAt = &at
	return nil
}

func (f *fakeCampaigns) Campaign(_ context.Context, id string) (*store.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func newTestRunner(sender MailSender, leads LeadStore, campaigns CampaignStore,
	batchSize int) (*Runner, *[]time.Duration) {
	r := NewRunner(sender, leads, campaigns, batchSize, time.Second, slog.New(slog.DiscardHandler))
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r, &slept
}

func testLeads() *fakeLeads {
	return &fakeLeads{leads: []*store.Lead{
		{ID: "l1", FullName: "Alice Johnson", Email: "alice@example.com", Company: "Acme"},
		{ID: "l2", FullName: "Bob Smith", Email: "bob@example.com", Company: "Globex"},
		{ID: "l3", FullName: "Carol Diaz", Email: "carol@example.com"},
	}}
}

func TestBulkSendPersonalizesPerLead(t *testing.T) {
	sender := &fakeSender{}
	r, _ := newTestRunner(sender, testLeads(), nil, 10)

	res, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "Hi {{first_name}}",
		Body:    "Greetings from us to {{company}}.",
		LeadIDs: []string{"l1", "l2"},
	})
	if err != nil {
		t.Fatalf("BulkSend: %v", err)
	}
	if res.Sent != 2 || res.Failed != 0 {
		t.Errorf("sent/failed = %d/%d", res.Sent, res.Failed)
	}
	if len(sender.requests) != 2 {
		t.Fatalf("sent %d requests", len(sender.requests))
	}
	if sender.requests[0].Subject != "Hi Alice" {
		t.Errorf("subject = %q", sender.requests[0].Subject)
	}
	if sender.requests[1].Body != "Greetings from us to Globex." {
		t.Errorf("body = %q", sender.requests[1].Body)
	}
	if sender.requests[0].LeadID != "l1" || sender.requests[0].To[0] != "alice@example.com" {
		t.Errorf("request = %+v", sender.requests[0])
	}
}

func TestBulkSendMonotonicDelay(t *testing.T) {
	sender := &fakeSender{}
	r, slept := newTestRunner(sender, testLeads(), nil, 2)

	_, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "s",
		Body:    "b",
		LeadIDs: []string{"l1", "l2", "l3"},
	})
	if err != nil {
		t.Fatalf("BulkSend: %v", err)
	}
	// Message 0 goes immediately; message k waits k units, counted
	// across batch boundaries.
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestBulkSendIndependentOutcomes(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"l2": errors.New("quota exceeded")}}
	r, _ := newTestRunner(sender, testLeads(), nil, 10)

	res, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "s",
		Body:    "b",
		LeadIDs: []string{"l1", "l2", "l3"},
	})
	if err != nil {
		t.Fatalf("a per-recipient failure must not fail the run: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Errorf("sent/failed = %d/%d, want 2/1", res.Sent, res.Failed)
	}
	if len(res.Outcomes) != 3 {
		t.Fatalf("got %d outcomes", len(res.Outcomes))
	}
	if res.Outcomes[1].Err == nil || res.Outcomes[1].LeadID != "l2" {
		t.Errorf("outcome[1] = %+v", res.Outcomes[1])
	}
	if res.Outcomes[2].MessageID != "msg-l3" {
		t.Errorf("the recipient after a failure must still be sent, outcome = %+v", res.Outcomes[2])
	}
}

func TestBulkSendSkipsUnknownAndEmaillessLeads(t *testing.T) {
	sender := &fakeSender{}
	leads := testLeads()
	leads.leads = append(leads.leads, &store.Lead{ID: "l4", FullName: "No Email"})
	r, _ := newTestRunner(sender, leads, nil, 10)

	res, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "s",
		Body:    "b",
		LeadIDs: []string{"l1", "l4", "missing"},
	})
	if err != nil {
		t.Fatalf("BulkSend: %v", err)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].LeadID != "l1" {
		t.Errorf("outcomes = %+v, want only the sendable lead", res.Outcomes)
	}
}

func TestBulkSendCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	r, _ := newTestRunner(sender, testLeads(), nil, 10)
	r.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	res, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "s",
		Body:    "b",
		LeadIDs: []string{"l1", "l2", "l3"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The first message went out before the first sleep.
	if res == nil || res.Sent != 1 {
		t.Errorf("partial result must cover attempts made, got %+v", res)
	}
}

func TestRunCampaignCompletes(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"l3": errors.New("bounced")}}
	campaigns := newFakeCampaigns(&store.Campaign{
		ID:       "c1",
		Subject:  "Hello {{first_name}}",
		Content:  "body",
		Audience: []string{"l1", "l2", "l3"},
		Status:   store.CampaignDraft,
		Sender:   "u1",
	})
	r, _ := newTestRunner(sender, testLeads(), campaigns, 2)

	res, err := r.RunCampaign(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RunCampaign: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Errorf("sent/failed = %d/%d", res.Sent, res.Failed)
	}

	c, _ := campaigns.Campaign(context.Background(), "c1")
	if c.Status != store.CampaignCompleted {
		t.Errorf("status = %q", c.Status)
	}
	if c.SentCount != 2 || c.FailedCount != 1 || c.TotalRecipients != 3 {
		t.Errorf("counters = %d/%d of %d", c.SentCount, c.FailedCount, c.TotalRecipients)
	}
	if c.StartedAt == nil || c.CompletedAt == nil || c.LastProcessedAt == nil {
		t.Error("lifecycle timestamps must be set")
	}
	if campaigns.saves[0] != store.CampaignSending {
		t.Errorf("first save status = %q, want sending", campaigns.saves[0])
	}
}

func TestRunCampaignHonorsCancellation(t *testing.T) {
	campaigns := newFakeCampaigns(&store.Campaign{
		ID:       "c1",
		Subject:  "s",
		Content:  "b",
		Audience: []string{"l1", "l2", "l3"},
		Status:   store.CampaignScheduled,
		Sender:   "u1",
	})
	sender := &fakeSender{}
	r, _ := newTestRunner(sender, testLeads(), campaigns, 1)

	// Cancel as soon as the first message is out.
	realSend := sender
	var cancellingSender MailSender = sendFunc(func(ctx context.Context, req *gmail.SendRequest) (*gmail.SendResult, error) {
		res, err := realSend.Send(ctx, req)
		stored := campaigns.campaigns["c1"]
		stored.Status = store.CampaignCancelled
		return res, err
	})
	r.sender = cancellingSender

	res, err := r.RunCampaign(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RunCampaign: %v", err)
	}
	if res.Sent != 1 {
		t.Errorf("sent = %d, want the run stopped at the batch boundary", res.Sent)
	}
	c, _ := campaigns.Campaign(context.Background(), "c1")
	if c.Status != store.CampaignCancelled {
		t.Errorf("status = %q, a cancelled campaign must stay cancelled", c.Status)
	}
}

func TestRunCampaignRejectsWrongState(t *testing.T) {
	campaigns := newFakeCampaigns(&store.Campaign{
		ID: "c1", Status: store.CampaignCompleted,
	})
	r, _ := newTestRunner(&fakeSender{}, testLeads(), campaigns, 1)

	if _, err := r.RunCampaign(context.Background(), "c1"); err == nil {
		t.Fatal("a completed campaign must not be runnable")
	}
}

type sendFunc func(ctx context.Context, req *gmail.SendRequest) (*gmail.SendResult, error)

func (f sendFunc) Send(ctx context.Context, req *gmail.SendRequest) (*gmail.SendResult, error) {
	return f(ctx, req)
}

type fakeRunnerMetrics struct {
	recipients []string
	runs       []string
}

func (f *fakeRunnerMetrics) RecordBulkRecipient(_ context.Context, result string) {
	f.recipients = append(f.recipients, result)
}

func (f *fakeRunnerMetrics) RecordCampaignRun(_ context.Context, status string) {
	f.runs = append(f.runs, status)
}

func TestBulkSendRecordsRecipientMetrics(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"l2": errors.New("bounced")}}
	metrics := &fakeRunnerMetrics{}
	r, _ := newTestRunner(sender, testLeads(), nil, 10)
	r.SetMetrics(metrics)

	if _, err := r.BulkSend(context.Background(), &BulkRequest{
		UserID:  "u1",
		Subject: "s",
		Body:    "b",
		LeadIDs: []string{"l1", "l2", "l3"},
	}); err != nil {
		t.Fatalf("BulkSend: %v", err)
	}

	want := []string{store.LogStatusSent, store.LogStatusFailed, store.LogStatusSent}
	if len(metrics.recipients) != len(want) {
		t.Fatalf("recorded %d recipients, want %d", len(metrics.recipients), len(want))
	}
	for i, result := range want {
		if metrics.recipients[i] != result {
			t.Errorf("recipient[%d] = %q, want %q", i, metrics.recipients[i], result)
		}
	}
	if len(metrics.runs) != 0 {
		t.Errorf("plain bulk send must not record a campaign run, got %v", metrics.runs)
	}
}

func TestRunCampaignRecordsRunMetric(t *testing.T) {
	campaigns := newFakeCampaigns(&store.Campaign{
		ID:       "c1",
		Subject:  "s",
		Content:  "b",
		Audience: []string{"l1"},
		Status:   store.CampaignDraft,
		Sender:   "u1",
	})
	metrics := &fakeRunnerMetrics{}
	r, _ := newTestRunner(&fakeSender{}, testLeads(), campaigns, 10)
	r.SetMetrics(metrics)

	if _, err := r.RunCampaign(context.Background(), "c1"); err != nil {
		t.Fatalf("RunCampaign: %v", err)
	}

	if len(metrics.runs) != 1 || metrics.runs[0] != store.CampaignCompleted {
		t.Errorf("campaign runs = %v, want one completed", metrics.runs)
	}
	if len(metrics.recipients) != 1 || metrics.recipients[0] != store.LogStatusSent {
		t.Errorf("recipients = %v", metrics.recipients)
	}
}
