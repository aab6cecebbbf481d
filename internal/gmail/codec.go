package gmail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxAttachmentSize bounds a single attachment (25MB, the Gmail limit).
	MaxAttachmentSize = 25 * 1024 * 1024

	// base64LineLength is the canonical MIME line width for encoded parts.
	base64LineLength = 76
)

// Attachment is one file carried by an outgoing message.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// OutgoingMessage is an email to be sent.
type OutgoingMessage struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []Attachment
}

// Encode builds the raw RFC 2822 message and returns it base64url
// encoded (unpadded), ready for the Gmail send endpoint's Raw field.
func Encode(msg *OutgoingMessage) (string, error) {
	raw, err := EncodeRaw(msg)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(raw), nil
}

// EncodeRaw builds the raw RFC 2822 byte block for msg. Messages with
// attachments become multipart/mixed with a generated boundary; the
// body is always the first part.
func EncodeRaw(msg *OutgoingMessage) ([]byte, error) {
	if msg.From == "" {
		return nil, fmt.Errorf("%w: a sender address is required", ErrEncode)
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrEncode)
	}
	for _, a := range msg.Attachments {
		if len(a.Data) > MaxAttachmentSize {
			return nil, fmt.Errorf("%w: attachment %q exceeds %d bytes", ErrEncode, a.Filename, MaxAttachmentSize)
		}
	}

	contentType := "text/plain"
	if msg.IsHTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\r\n", strings.Join(msg.Bcc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", encodeRFC2047(msg.Subject))

	if len(msg.Attachments) == 0 {
		fmt.Fprintf(&b, "Content-Type: %s; charset=utf-8\r\n", contentType)
		b.WriteString("MIME-Version: 1.0\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	boundary := newBoundary()
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: %s; charset=utf-8\r\n\r\n", contentType)
	b.WriteString(msg.Body)
	b.WriteString("\r\n\r\n")

	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; name=%q\r\n", a.MimeType, a.Filename)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", a.Filename)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(wrapBase64(a.Data))
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--", boundary)

	return []byte(b.String()), nil
}

// newBoundary returns a boundary unique per message. A UUID cannot
// collide with message content in practice and never needs escaping.
func newBoundary() string {
	return "boundary_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// wrapBase64 encodes data as standard base64 wrapped at 76 columns with
// CRLF line endings, the way MIME bodies expect.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(encoded) > base64LineLength {
		b.WriteString(encoded[:base64LineLength])
		b.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.String()
}

// encodeRFC2047 encodes a header value when it carries non-ASCII
// characters, per RFC 2047.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// EncodeBase64URL applies the Gmail wire transform: standard base64
// with '+' and '/' swapped for '-' and '_' and padding stripped.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL reverses EncodeBase64URL. Padded input is tolerated,
// as is data the API returned in standard base64.
func DecodeBase64URL(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err == nil {
		return data, nil
	}
	data, stdErr := base64.RawStdEncoding.DecodeString(trimmed)
	if stdErr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("decode base64url: %w", err)
}
