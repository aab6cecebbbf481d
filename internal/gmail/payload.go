package gmail

import (
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
)

// DefaultScanDepth bounds the part-tree walk to the root, its children
// and their children. Gmail nests deeper for exotic messages, but this
// matches what the integration has always surfaced; callers that need
// more can pass a larger depth to the walk helpers.
const DefaultScanDepth = 2

// AttachmentInfo is the metadata surfaced for one attachment part.
type AttachmentInfo struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
}

// Decoded is the structured view of a fetched message payload.
type Decoded struct {
	ID          string
	ThreadID    string
	Snippet     string
	LabelIDs    []string
	Headers     map[string]string
	PlainBody   string
	HTMLBody    string
	Attachments []AttachmentInfo
}

// DecodeMessage flattens a full-format Gmail message into headers,
// bodies and attachment metadata.
func DecodeMessage(msg *gmailapi.Message) *Decoded {
	d := &Decoded{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
		Headers:  HeaderMap(msg.Payload),
	}
	if msg.Payload != nil {
		d.PlainBody = BodyByMimeType(msg.Payload, "text/plain", DefaultScanDepth)
		d.HTMLBody = BodyByMimeType(msg.Payload, "text/html", DefaultScanDepth)
		d.Attachments = ListAttachments(msg.Payload, DefaultScanDepth)
	}
	return d
}

// HeaderMap folds the payload's top-level headers into a map keyed by
// lowercase header name. Later duplicates win.
func HeaderMap(payload *gmailapi.MessagePart) map[string]string {
	headers := make(map[string]string)
	if payload == nil {
		return headers
	}
	for _, h := range payload.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}
	return headers
}

// Header returns one header value by case-insensitive name.
func Header(payload *gmailapi.MessagePart, name string) string {
	return HeaderMap(payload)[strings.ToLower(name)]
}

// walkParts runs fn over the part tree in pre-order, left to right,
// down to maxDepth levels below the root (the root is depth 0). fn
// returns false to stop the walk early.
func walkParts(part *gmailapi.MessagePart, maxDepth int, fn func(part *gmailapi.MessagePart, depth int) bool) {
	var walk func(p *gmailapi.MessagePart, depth int) bool
	walk = func(p *gmailapi.MessagePart, depth int) bool {
		if p == nil {
			return true
		}
		if !fn(p, depth) {
			return false
		}
		if depth == maxDepth {
			return true
		}
		for _, child := range p.Parts {
			if !walk(child, depth+1) {
				return false
			}
		}
		return true
	}
	walk(part, 0)
}

// BodyByMimeType returns the decoded body of the first part whose MIME
// type matches, scanning the root and then descendants left to right
// down to maxDepth. No match or an undecodable body yields "".
func BodyByMimeType(payload *gmailapi.MessagePart, mimeType string, maxDepth int) string {
	var body string
	walkParts(payload, maxDepth, func(p *gmailapi.MessagePart, _ int) bool {
		if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
			if decoded, err := DecodeBase64URL(p.Body.Data); err == nil {
				body = string(decoded)
			}
			return false
		}
		return true
	})
	return body
}

// ListAttachments collects attachment metadata from the payload's
// descendants. A part counts as an attachment only when it carries both
// a filename and an attachment reference; the root part never does.
func ListAttachments(payload *gmailapi.MessagePart, maxDepth int) []AttachmentInfo {
	var attachments []AttachmentInfo
	walkParts(payload, maxDepth, func(p *gmailapi.MessagePart, depth int) bool {
		if depth == 0 {
			return true
		}
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			attachments = append(attachments, AttachmentInfo{
				ID:       p.Body.AttachmentId,
				Filename: p.Filename,
				MimeType: p.MimeType,
				Size:     p.Body.Size,
			})
		}
		return true
	})
	return attachments
}

// HasAttachments reports whether any descendant part carries a filename.
func HasAttachments(payload *gmailapi.MessagePart, maxDepth int) bool {
	found := false
	walkParts(payload, maxDepth, func(p *gmailapi.MessagePart, depth int) bool {
		if depth > 0 && p.Filename != "" {
			found = true
			return false
		}
		return true
	})
	return found
}
