// Package extractor derives structured intake fields from free-text utterances.
//
// The OpenAI-backed implementation asks for strict JSON-schema output and validates the
// reply again at the boundary, so nothing outside the declared shape reaches the step engine.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/genai"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/openai/openai-go"
	"github.com/xeipuuv/gojsonschema"
)

// ErrContractViolation is returned when extractor output does not match the declared schema.
var ErrContractViolation = errors.New("extraction contract violation")

// Extractor returns the assistant message and sparse extracted fields for one utterance.
type Extractor interface {
	Extract(ctx context.Context, step models.Step, state models.IntakeState, utterance string) (models.Extraction, error)
}

// Decoder validates raw extractor JSON against the boundary schema.
type Decoder struct {
	schema *gojsonschema.Schema
}

// NewDecoder compiles the boundary schema.
func NewDecoder() (*Decoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(ResponseSchema(false)))
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode parses raw into an Extraction. Any shape mismatch yields ErrContractViolation.
func (d *Decoder) Decode(raw string) (models.Extraction, error) {
	result, err := d.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return models.Extraction{}, fmt.Errorf("%w: %s", ErrContractViolation, strings.Join(errs, "; "))
	}
	var out models.Extraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return models.Extraction{}, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}
	return out, nil
}

// OpenAIExtractor implements Extractor with a structured chat completion.
type OpenAIExtractor struct {
	client  genai.ClientInterface
	decoder *Decoder
}

// NewOpenAIExtractor creates an extractor on top of a GenAI client.
func NewOpenAIExtractor(client genai.ClientInterface) (*OpenAIExtractor, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	dec, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	return &OpenAIExtractor{client: client, decoder: dec}, nil
}

// Extract sends the step, a state snapshot, and the utterance to the model.
// Transport failures are returned as-is; malformed replies wrap ErrContractViolation.
func (e *OpenAIExtractor) Extract(ctx context.Context, step models.Step, state models.IntakeState, utterance string) (models.Extraction, error) {
	systemPrompt, err := SystemPrompt(step, state)
	if err != nil {
		return models.Extraction{}, err
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(utterance),
	}
	raw, err := e.client.GenerateStructured(ctx, messages, genai.Schema{
		Name:        SchemaName,
		Description: "Intake fields extracted from the patient's latest message",
		Definition:  ResponseSchema(true),
		Strict:      true,
	})
	if err != nil {
		return models.Extraction{}, fmt.Errorf("extract fields for step %s: %w", step, err)
	}
	out, err := e.decoder.Decode(raw)
	if err != nil {
		slog.Warn("OpenAIExtractor.Extract: discarding malformed extraction", "step", step, "error", err)
		return models.Extraction{}, err
	}
	slog.Debug("OpenAIExtractor.Extract: extraction decoded", "step", step, "assistant_message_length", len(out.AssistantMessage))
	return out, nil
}

// SystemPrompt builds the instruction for one extraction call.
func SystemPrompt(step models.Step, state models.IntakeState) (string, error) {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state snapshot: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful assistant collecting patient intake information. The current step is '%s'.\n", step)
	fmt.Fprintf(&b, "Current collected state: %s\n\n", snapshot)
	b.WriteString("Your job:\n")
	b.WriteString("1) Extract information from the user's message that pertains to the intake, especially the current step.\n")
	b.WriteString("2) Put extracted values under 'extracted' using only these fields:\n")
	for _, p := range FieldPaths {
		b.WriteString("   - " + p + "\n")
	}
	b.WriteString("3) Use null for anything the user did not state. Never guess or reuse values from the collected state.\n")
	b.WriteString("4) Set extracted.intent.skip_insurance_id to true only if the user says they do not have or will not provide an insurance ID.\n")
	b.WriteString("5) Put a short follow-up for the user in 'assistant_message'.\n")
	b.WriteString("6) Return STRICT JSON only.")
	return b.String(), nil
}
