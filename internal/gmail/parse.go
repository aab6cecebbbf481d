package gmail

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	gmailapi "google.golang.org/api/gmail/v1"
)

// ParseRaw parses a raw RFC 2822 message (as fetched with format=raw)
// into the same part tree shape the full-format API returns, so the
// decode helpers work on either. Attachment ids are synthesized since a
// raw message carries its data inline.
func ParseRaw(raw []byte) (*gmailapi.MessagePart, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse raw message: %w", err)
	}
	counter := 0
	return convertEntity(entity, &counter)
}

func convertEntity(e *message.Entity, counter *int) (*gmailapi.MessagePart, error) {
	part := &gmailapi.MessagePart{}

	fields := e.Header.Fields()
	for fields.Next() {
		part.Headers = append(part.Headers, &gmailapi.MessagePartHeader{
			Name:  fields.Key(),
			Value: fields.Value(),
		})
	}

	mimeType, ctParams, err := e.Header.ContentType()
	if err == nil {
		part.MimeType = mimeType
	}
	_, cdParams, _ := e.Header.ContentDisposition()
	filename := cdParams["filename"]
	if filename == "" {
		filename = ctParams["name"]
	}
	part.Filename = filename

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("parse message part: %w", err)
			}
			converted, err := convertEntity(child, counter)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	// Leaf part: the reader already reversed the transfer encoding.
	data, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	part.Body = &gmailapi.MessagePartBody{
		Data: EncodeBase64URL(data),
		Size: int64(len(data)),
	}
	if filename != "" {
		*counter++
		part.Body.AttachmentId = fmt.Sprintf("raw:%d", *counter)
	}
	return part, nil
}
