package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/pkg/logging"
)

// ErrExtractionFailed means the model call or its output parse failed.
// Callers fall back to merging an empty extraction rather than dropping
// the customer's turn.
var ErrExtractionFailed = errors.New("extraction: extraction failed")

const systemPrompt = `You are a booking assistant's extraction layer. Read the customer's latest message in the context of the conversation and report appointment details as JSON.

Rules:
- Only report values the customer actually stated. Never guess or invent.
- Dates are YYYY-MM-DD. Leave relative phrases like "tomorrow" as-is in the date field.
- If the customer declines a field (e.g. "no notes"), include that field name in collectedFields with an empty value.
- serviceLocation is "home" when the work happens at the customer's address, "business" otherwise, empty when unclear.
- isAppointmentRequest is true once the customer is trying to book, reschedule, or cancel.

Respond with ONLY this JSON object, no prose:
{
  "service": "", "date": "", "time": "", "customerName": "", "customerPhone": "",
  "address": "", "city": "", "state": "", "zipCode": "", "serviceLocation": "",
  "notes": "", "collectedFields": [], "isAppointmentRequest": false
}`

// Extractor turns one customer message into a partial appointment draft
// via an LLM behind the LLMClient interface.
type Extractor struct {
	client   LLMClient
	model    string
	provider string
	logger   *logging.Logger
	metrics  *metrics.EngineMetrics
}

// NewExtractor constructs an extractor. provider labels metrics ("gemini",
// "bedrock").
func NewExtractor(client LLMClient, model, provider string, logger *logging.Logger, engineMetrics *metrics.EngineMetrics) *Extractor {
	if client == nil {
		panic("extraction: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if provider == "" {
		provider = "unknown"
	}
	return &Extractor{
		client:   client,
		model:    model,
		provider: provider,
		logger:   logger,
		metrics:  engineMetrics,
	}
}

// Extract reports the appointment details present in message. The current
// draft is included in the prompt so the model only reports new or changed
// fields rather than re-deriving the whole state.
func (e *Extractor) Extract(ctx context.Context, draft appointment.Draft, message string, recent []appointment.Turn) (appointment.Extracted, error) {
	started := time.Now()

	req := LLMRequest{
		Model:       e.model,
		System:      []string{systemPrompt, draftContext(draft)},
		Messages:    buildMessages(message, recent),
		MaxTokens:   512,
		Temperature: 0,
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		e.metrics.ObserveExtraction(e.provider, "error", time.Since(started).Seconds())
		return appointment.Extracted{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	extracted, err := ParseResponse(resp.Text)
	if err != nil {
		e.metrics.ObserveExtraction(e.provider, "parse_error", time.Since(started).Seconds())
		e.logger.Warn("unparseable extraction output", "provider", e.provider, "error", err)
		return appointment.Extracted{}, err
	}

	e.metrics.ObserveExtraction(e.provider, "ok", time.Since(started).Seconds())
	return extracted, nil
}

func draftContext(draft appointment.Draft) string {
	state, err := json.Marshal(draft)
	if err != nil {
		return ""
	}
	return "Current draft state:\n" + string(state)
}

func buildMessages(message string, recent []appointment.Turn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(recent)+1)
	for _, turn := range recent {
		role := ChatRoleUser
		if turn.Role == appointment.RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	return append(messages, ChatMessage{Role: ChatRoleUser, Content: message})
}

// ParseResponse decodes the model's JSON output. Models wrap JSON in
// markdown fences or prose often enough that the parser cuts down to the
// outermost object before decoding.
func ParseResponse(text string) (appointment.Extracted, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return appointment.Extracted{}, fmt.Errorf("%w: no JSON object in output", ErrExtractionFailed)
	}

	var extracted appointment.Extracted
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		return appointment.Extracted{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return extracted, nil
}

func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if after, found := strings.CutPrefix(text, "```json"); found {
		text = after
	} else if after, found := strings.CutPrefix(text, "```"); found {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
