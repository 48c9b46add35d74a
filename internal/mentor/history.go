package mentor

import (
	"encoding/base64"

	"google.golang.org/genai"

	"github.com/eductome/eductome/internal/domain"
)

// MapHistory converts internal messages to Gemini chat history. Thinking
// placeholders are excluded, attached images are decoded from their data
// URIs into inline parts, and messages left with zero parts are dropped.
// The mapping is pure and preserves order.
func MapHistory(messages []domain.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if msg.IsThinking {
			continue
		}

		parts := TurnParts(msg.Content, msg.Image)
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleModel
		if msg.Role == domain.RoleUser {
			role = genai.RoleUser
		}
		history = append(history, &genai.Content{Role: role, Parts: parts})
	}
	return history
}

// TurnParts builds the parts list for a single turn: an inline image part
// when the data URI decodes, then a text part when content is non-empty.
// A malformed image is dropped rather than failing the turn.
func TurnParts(content, imageURI string) []*genai.Part {
	var parts []*genai.Part
	if imageURI != "" {
		if mimeType, payload, ok := domain.ParseDataURI(imageURI); ok {
			if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: mimeType, Data: data},
				})
			}
		}
	}
	if content != "" {
		parts = append(parts, &genai.Part{Text: content})
	}
	return parts
}
