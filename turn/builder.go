package turn

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// Builder translates a stored RawMessage into a Turn.
type Builder struct{}

// NewBuilder returns a stateless Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build converts msg into a Turn scoped to tenantID. It returns a
// core.ErrInboundMalformed-wrapped error for messages that carry
// provider-level errors or an unsupported type (§6.4, §7 kind 7); such
// messages must be recorded and skipped, never orchestrated.
func (b *Builder) Build(tenantID string, msg RawMessage) (Turn, error) {
	if msg.IsMalformed() {
		return Turn{}, core.NewFrameworkError("turn.build", "InboundMalformed", core.ErrInboundMalformed).WithID(msg.ID)
	}

	t := Turn{
		TenantID:  tenantID,
		WaID:      msg.From,
		MessageID: msg.ID,
		Text:      renderText(msg),
		Payload:   renderPayload(msg),
		Timestamp: renderTimestamp(msg.Timestamp),
	}
	return t, nil
}

// renderText implements the per-message-type text extraction table.
func renderText(msg RawMessage) string {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return msg.Text.Body
		}
		return ""
	case "audio":
		if msg.Audio != nil && msg.Audio.Transcription != "" {
			return msg.Audio.Transcription
		}
		return "[Audio message]"
	case "button":
		if msg.Button != nil && msg.Button.Text != "" {
			return msg.Button.Text
		}
		return "[Button response]"
	case "location":
		return "[Location shared]"
	case "contacts":
		return "[Contact card shared]"
	case "document":
		if msg.Document != nil && msg.Document.Filename != "" {
			return fmt.Sprintf("[Document: %s]", msg.Document.Filename)
		}
		return "[Document shared]"
	case "image":
		return "[Image shared]"
	case "video":
		return "[Video shared]"
	case "sticker":
		return "[Sticker shared]"
	default:
		if msg.Text != nil && msg.Text.Body != "" {
			return msg.Text.Body
		}
		return fmt.Sprintf("[%s message]", msg.Type)
	}
}

// renderPayload populates the Turn's Payload only for interactive types
// (button/list), using the stored interactive metadata.
func renderPayload(msg RawMessage) interface{} {
	if msg.Interactive != nil {
		return msg.Interactive
	}
	if msg.Type == "button" && msg.Button != nil {
		return msg.Button
	}
	return nil
}

// renderTimestamp converts an epoch-seconds provider timestamp into
// ISO-8601 UTC. A malformed or empty timestamp renders as the zero instant
// rather than failing the build, since timestamp is advisory metadata.
func renderTimestamp(raw string) string {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Unix(0, 0).UTC().Format(time.RFC3339)
	}
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
