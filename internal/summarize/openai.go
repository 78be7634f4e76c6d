package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// ModeOpenAI names the OpenAI-backed summarizer.
const ModeOpenAI = "openai"

const summaryInstructions = `You write the weekly executive briefing for a customer engagement dashboard.
Use only the figures provided. Keep the summary under 120 words, plain prose, no markdown.
Return JSON matching the schema.`

type summaryResponse struct {
	Summary string `json:"summary" jsonschema:"required,description=Executive summary in plain prose"`
}

var summarySchema = generateSchema[summaryResponse]()

// OpenAISummarizer asks an OpenAI model for the narrative summary.
type OpenAISummarizer struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewOpenAISummarizer builds a summarizer; extra options are passed to the
// OpenAI client (base URL overrides in tests, for example).
func NewOpenAISummarizer(apiKey, model string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai summarizer: api key is empty")
	}
	if model == "" {
		return nil, errors.New("openai summarizer: model is empty")
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAISummarizer{client: &client, model: model, maxRetries: 2, backoff: 2 * time.Second}, nil
}

// Name implements Summarizer.
func (s *OpenAISummarizer) Name() string { return ModeOpenAI }

// Summarize implements Summarizer.
func (s *OpenAISummarizer) Summarize(ctx context.Context, in Input) (string, error) {
	input, err := buildSummaryInput(in)
	if err != nil {
		return "", err
	}

	params := responses.ResponseNewParams{
		Model:           s.model,
		MaxOutputTokens: openai.Int(600),
		Instructions:    openai.String(summaryInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "EngagementSummary",
					Schema:      summarySchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Engagement dashboard summary JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := s.callWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	var out summaryResponse
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}

func (s *OpenAISummarizer) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		resp, err := s.client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt+1)):
		}
	}
	return nil, fmt.Errorf("openai summary request: %w", lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "500", "502", "503", "server_error"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func buildSummaryInput(in Input) (string, error) {
	payload := map[string]any{
		"kpis":                   in.Views.KPIs,
		"sentiment_distribution": in.Views.Distribution,
		"top_topics":             in.Views.Topics.Top(10),
		"hotspots":               in.Hotspots,
		"sentiment_dips":         in.Dips,
		"recent_notes":           in.Notes,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summary input: %w", err)
	}
	return string(b), nil
}

// decodeModelJSON accepts the model output as-is or extracts the first
// top-level JSON object from surrounding text.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	ensureStrictObjects(m)
	return m
}

// ensureStrictObjects marks every object closed and all its properties
// required, as strict structured output demands.
func ensureStrictObjects(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				ensureStrictObjects(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrictObjects(items)
	}
}
