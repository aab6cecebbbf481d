package gmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/crmkit/leadmail/internal/google"
	"github.com/crmkit/leadmail/internal/instrumentation"
	"github.com/crmkit/leadmail/internal/store"
)

type fakeTransport struct {
	sentRaw []string
	sendErr error
	sendID  string

	messages map[string]*gmailapi.Message
	listResp *gmailapi.ListMessagesResponse
	listErr  error
	lastQ    string
}

func (f *fakeTransport) Send(_ context.Context, raw string) (*gmailapi.Message, error) {
	f.sentRaw = append(f.sentRaw, raw)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	id := f.sendID
	if id == "" {
		id = "msg-1"
	}
	return &gmailapi.Message{Id: id, ThreadId: "thread-1"}, nil
}

func (f *fakeTransport) Get(_ context.Context, id, _ string) (*gmailapi.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (f *fakeTransport) List(_ context.Context, q string, _ []string, _ int64, _ string) (*gmailapi.ListMessagesResponse, error) {
	f.lastQ = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listResp, nil
}

func (f *fakeTransport) Attachment(_ context.Context, _, _ string) ([]byte, error) {
	return []byte("attachment-bytes"), nil
}

type fakeFactory struct {
	transport *fakeTransport
	cred      *store.Credential
	err       error
}

func (f *fakeFactory) TransportFor(_ context.Context, _ string) (Transport, *store.Credential, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.transport, f.cred, nil
}

type fakeLogStore struct {
	entries   []*store.EmailLog
	insertErr error
	touched   []string
}

func (f *fakeLogStore) InsertLog(_ context.Context, l *store.EmailLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *l
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeLogStore) TouchLastContacted(_ context.Context, leadID string, _ time.Time) error {
	f.touched = append(f.touched, leadID)
	return nil
}

func newTestGateway(factory TransportFactory, logs LogStore) *Gateway {
	g := NewGateway(factory, logs, slog.New(slog.DiscardHandler))
	g.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestGatewaySendSuccess(t *testing.T) {
	transport := &fakeTransport{}
	logs := &fakeLogStore{}
	g := newTestGateway(&fakeFactory{
		transport: transport,
		cred:      &store.Credential{UserID: "u1", ProviderEmail: "me@gmail.com"},
	}, logs)

	res, err := g.Send(context.Background(), &SendRequest{
		UserID:  "u1",
		LeadID:  "lead-1",
		To:      []string{"alice@example.com"},
		Subject: "hello",
		Body:    "hi",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg-1" || res.ThreadID != "thread-1" {
		t.Errorf("result = %+v", res)
	}

	if len(transport.sentRaw) != 1 {
		t.Fatalf("sent %d messages, want 1", len(transport.sentRaw))
	}
	raw, err := DecodeBase64URL(transport.sentRaw[0])
	if err != nil {
		t.Fatalf("sent raw is not base64url: %v", err)
	}
	payload, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if from := HeaderMap(payload)["from"]; from != "me@gmail.com" {
		t.Errorf("from = %q, want the stored provider email", from)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("logged %d attempts, want 1", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.Status != store.LogStatusSent {
		t.Errorf("status = %q", entry.Status)
	}
	if entry.MessageID != "msg-1" || entry.ToEmail != "alice@example.com" || entry.LeadID != "lead-1" {
		t.Errorf("entry = %+v", entry)
	}

	if len(logs.touched) != 1 || logs.touched[0] != "lead-1" {
		t.Errorf("touched = %v, want the lead stamped", logs.touched)
	}
}

func TestGatewaySendTransportFailure(t *testing.T) {
	transport := &fakeTransport{sendErr: &TransportError{StatusCode: 503, Err: errors.New("backend")}}
	logs := &fakeLogStore{}
	g := newTestGateway(&fakeFactory{
		transport: transport,
		cred:      &store.Credential{ProviderEmail: "me@gmail.com"},
	}, logs)

	_, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", LeadID: "lead-1", To: []string{"alice@example.com"},
	})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("failed attempt must still be logged, got %d entries", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.Status != store.LogStatusFailed || entry.ErrorMessage == "" {
		t.Errorf("entry = %+v", entry)
	}
	if len(logs.touched) != 0 {
		t.Error("failed send must not stamp the lead")
	}
}

func TestGatewaySendLogFailureDoesNotAffectOutcome(t *testing.T) {
	logs := &fakeLogStore{insertErr: errors.New("disk full")}
	g := newTestGateway(&fakeFactory{
		transport: &fakeTransport{},
		cred:      &store.Credential{ProviderEmail: "me@gmail.com"},
	}, logs)

	res, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	})
	if err != nil {
		t.Fatalf("log failure must not fail the send: %v", err)
	}
	if res.MessageID == "" {
		t.Error("missing message id")
	}
}

func TestGatewaySendEncodeFailure(t *testing.T) {
	transport := &fakeTransport{}
	logs := &fakeLogStore{}
	g := newTestGateway(&fakeFactory{transport: transport, cred: &store.Credential{}}, logs)

	_, err := g.Send(context.Background(), &SendRequest{UserID: "u1"})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if len(transport.sentRaw) != 0 {
		t.Error("nothing may reach the transport when encoding fails")
	}
	if len(logs.entries) != 1 || logs.entries[0].Status != store.LogStatusFailed {
		t.Errorf("encode failure must be logged as failed, entries = %+v", logs.entries)
	}
}

func TestGatewaySendUnauthenticated(t *testing.T) {
	logs := &fakeLogStore{}
	g := newTestGateway(&fakeFactory{err: google.ErrUnauthenticated}, logs)

	_, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	})
	if !errors.Is(err, google.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(logs.entries) != 1 || logs.entries[0].Status != store.LogStatusFailed {
		t.Errorf("auth failure must be logged as failed, entries = %+v", logs.entries)
	}
}

func TestGatewayListMessages(t *testing.T) {
	transport := &fakeTransport{
		listResp: &gmailapi.ListMessagesResponse{
			Messages:      []*gmailapi.Message{{Id: "m1"}, {Id: "gone"}},
			NextPageToken: "page-2",
		},
		messages: map[string]*gmailapi.Message{
			"m1": {
				Id:       "m1",
				ThreadId: "t1",
				Snippet:  "hi",
				Payload: &gmailapi.MessagePart{
					Headers: []*gmailapi.MessagePartHeader{
						{Name: "From", Value: "me@gmail.com"},
						{Name: "To", Value: "alice@example.com"},
						{Name: "Subject", Value: "hello"},
					},
					Parts: []*gmailapi.MessagePart{
						{MimeType: "application/pdf", Filename: "a.pdf",
							Body: &gmailapi.MessagePartBody{AttachmentId: "att-1"}},
					},
				},
			},
		},
	}
	g := newTestGateway(&fakeFactory{transport: transport, cred: &store.Credential{}}, nil)

	got, next, err := g.ListMessages(context.Background(), "u1", ListOptions{
		Sent:   true,
		Search: "hello",
		After:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if transport.lastQ != "in:sent hello after:2026/02/01" {
		t.Errorf("query = %q", transport.lastQ)
	}
	if next != "page-2" {
		t.Errorf("next page token = %q", next)
	}
	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1 (unfetchable message skipped)", len(got))
	}
	s := got[0]
	if s.From != "me@gmail.com" || s.To != "alice@example.com" || s.Subject != "hello" {
		t.Errorf("summary = %+v", s)
	}
	if !s.HasAttachments {
		t.Error("summary must flag the attachment")
	}
}

func TestGatewayGetMessageNotFound(t *testing.T) {
	g := newTestGateway(&fakeFactory{
		transport: &fakeTransport{messages: map[string]*gmailapi.Message{}},
		cred:      &store.Credential{},
	}, nil)

	_, err := g.GetMessage(context.Background(), "u1", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		opts ListOptions
		want string
	}{
		{"empty", ListOptions{}, ""},
		{"sent only", ListOptions{Sent: true}, "in:sent"},
		{
			"all bounds",
			ListOptions{
				Sent:   true,
				Search: "invoice",
				After:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Before: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			"in:sent invoice after:2026/01/01 before:2026/02/01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildQuery(tt.opts); got != tt.want {
				t.Errorf("BuildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapTransportError(t *testing.T) {
	notFound := mapTransportError(&googleapi.Error{Code: http.StatusNotFound, Message: "gone"})
	if !errors.Is(notFound, ErrNotFound) {
		t.Errorf("404 must map to ErrNotFound, got %v", notFound)
	}

	var te *TransportError
	rateLimited := mapTransportError(&googleapi.Error{Code: http.StatusTooManyRequests})
	if !errors.As(rateLimited, &te) || te.StatusCode != http.StatusTooManyRequests {
		t.Errorf("429 must map to TransportError with status, got %v", rateLimited)
	}

	plain := mapTransportError(errors.New("dial tcp: timeout"))
	if !errors.As(plain, &te) || te.StatusCode != 0 {
		t.Errorf("plain error must map to TransportError without status, got %v", plain)
	}
}

type fakeAuditor struct {
	audits []*instrumentation.SendAudit
}

func (f *fakeAuditor) LogSend(a *instrumentation.SendAudit) { f.audits = append(f.audits, a) }

func TestGatewaySendAuditTrail(t *testing.T) {
	auditor := &fakeAuditor{}
	g := newTestGateway(&fakeFactory{
		transport: &fakeTransport{},
		cred:      &store.Credential{UserID: "u1", ProviderEmail: "me@gmail.com"},
	}, &fakeLogStore{})
	g.SetAudit(auditor)

	_, err := g.Send(context.Background(), &SendRequest{
		UserID:     "u1",
		LeadID:     "lead-1",
		CampaignID: "camp-1",
		To:         []string{"alice@example.com"},
		Subject:    "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(auditor.audits) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditor.audits))
	}
	a := auditor.audits[0]
	if a.UserID != "u1" || a.RecipientEmail != "alice@example.com" {
		t.Errorf("audit identity = %+v", a)
	}
	if a.SenderEmail != "me@gmail.com" {
		t.Errorf("sender = %q", a.SenderEmail)
	}
	if a.LeadID != "lead-1" || a.CampaignID != "camp-1" {
		t.Errorf("crm linkage = %+v", a)
	}
	if !a.Success || a.MessageID != "msg-1" {
		t.Errorf("outcome = %+v", a)
	}
}

func TestGatewaySendDefaultFromFallback(t *testing.T) {
	transport := &fakeTransport{}
	g := newTestGateway(&fakeFactory{
		transport: transport,
		cred:      &store.Credential{UserID: "u1"},
	}, &fakeLogStore{})
	g.SetDefaultFrom("crm@company.com")

	_, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	raw, err := DecodeBase64URL(transport.sentRaw[0])
	if err != nil {
		t.Fatalf("sent raw is not base64url: %v", err)
	}
	payload, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if from := HeaderMap(payload)["from"]; from != "crm@company.com" {
		t.Errorf("from = %q, want the configured fallback sender", from)
	}
}

func TestGatewaySendWithoutAnySender(t *testing.T) {
	transport := &fakeTransport{}
	g := newTestGateway(&fakeFactory{
		transport: transport,
		cred:      &store.Credential{UserID: "u1"},
	}, &fakeLogStore{})

	_, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode without any sender address, got %v", err)
	}
	if len(transport.sentRaw) != 0 {
		t.Error("nothing may reach the transport without a sender")
	}
}

type fakeMetrics struct {
	sends     []string
	durations []string
	ops       []string
}

func (f *fakeMetrics) RecordSend(_ context.Context, result string) {
	f.sends = append(f.sends, result)
}

func (f *fakeMetrics) RecordSendDuration(_ context.Context, result, _ string, _ time.Duration) {
	f.durations = append(f.durations, result)
}

func (f *fakeMetrics) RecordGmailOperation(_ context.Context, operation, status string, _ time.Duration) {
	f.ops = append(f.ops, operation+":"+status)
}

func TestGatewayRecordsSendMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	g := newTestGateway(&fakeFactory{
		transport: &fakeTransport{},
		cred:      &store.Credential{UserID: "u1", ProviderEmail: "me@gmail.com"},
	}, &fakeLogStore{})
	g.SetMetrics(metrics)

	if _, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(metrics.sends) != 1 || metrics.sends[0] != store.LogStatusSent {
		t.Errorf("send results = %v", metrics.sends)
	}
	if len(metrics.durations) != 1 || metrics.durations[0] != store.LogStatusSent {
		t.Errorf("duration results = %v", metrics.durations)
	}
	if len(metrics.ops) != 1 || metrics.ops[0] != "send:success" {
		t.Errorf("operations = %v", metrics.ops)
	}
}

func TestGatewayRecordsFailedOperationMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	transport := &fakeTransport{sendErr: &TransportError{StatusCode: 503, Err: errors.New("backend")}}
	g := newTestGateway(&fakeFactory{
		transport: transport,
		cred:      &store.Credential{ProviderEmail: "me@gmail.com"},
	}, &fakeLogStore{})
	g.SetMetrics(metrics)

	if _, err := g.Send(context.Background(), &SendRequest{
		UserID: "u1", To: []string{"alice@example.com"},
	}); err == nil {
		t.Fatal("expected transport failure")
	}

	if len(metrics.sends) != 1 || metrics.sends[0] != store.LogStatusFailed {
		t.Errorf("send results = %v", metrics.sends)
	}
	if len(metrics.ops) != 1 || metrics.ops[0] != "send:error" {
		t.Errorf("operations = %v", metrics.ops)
	}
}

func TestGatewayRecordsListAndGetMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	transport := &fakeTransport{
		listResp: &gmailapi.ListMessagesResponse{},
		messages: map[string]*gmailapi.Message{
			"m1": {Id: "m1", Payload: &gmailapi.MessagePart{}},
		},
	}
	g := newTestGateway(&fakeFactory{transport: transport, cred: &store.Credential{}}, nil)
	g.SetMetrics(metrics)

	if _, _, err := g.ListMessages(context.Background(), "u1", ListOptions{}); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if _, err := g.GetMessage(context.Background(), "u1", "m1"); err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if _, err := g.GetAttachment(context.Background(), "u1", "m1", "att-1"); err != nil {
		t.Fatalf("GetAttachment: %v", err)
	}

	want := []string{"list:success", "get:success", "attachment:success"}
	if len(metrics.ops) != len(want) {
		t.Fatalf("operations = %v, want %v", metrics.ops, want)
	}
	for i, op := range want {
		if metrics.ops[i] != op {
			t.Errorf("operation[%d] = %q, want %q", i, metrics.ops[i], op)
		}
	}
}
