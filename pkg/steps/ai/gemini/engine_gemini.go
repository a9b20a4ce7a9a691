package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/security"
	"github.com/go-go-golems/sentient/pkg/turns"
)

const (
	DefaultModel = "gemini-2.5-flash"
	providerName = "gemini"
)

var ErrMissingAPIKey = errors.New("missing Gemini API key (set GEMINI_API_KEY)")

// Settings configures the Gemini engine.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
	// AllowInsecureBaseURL permits http and local endpoints, used against test servers.
	AllowInsecureBaseURL bool
	Temperature          *float32
	MaxOutputTokens      *int32
	// HTTPClient replaces the REST transport, e.g. to go through a proxy.
	// The client library does not attach APIKey to requests sent through it.
	HTTPClient *http.Client
}

// GeminiEngine implements the Engine interface for Google's Gemini API
type GeminiEngine struct {
	settings Settings
	config   *engine.Config
}

var _ engine.Engine = (*GeminiEngine)(nil)

// NewGeminiEngine creates a new Gemini inference engine with the given settings and options.
func NewGeminiEngine(settings Settings, options ...engine.Option) (*GeminiEngine, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	if settings.BaseURL != "" {
		opts := security.OutboundURLOptions{
			AllowHTTP:          settings.AllowInsecureBaseURL,
			AllowLocalNetworks: settings.AllowInsecureBaseURL,
		}
		if err := security.ValidateOutboundURL(settings.BaseURL, opts); err != nil {
			return nil, errors.Wrap(err, "gemini base url")
		}
	}

	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &GeminiEngine{settings: settings, config: cfg}, nil
}

func (e *GeminiEngine) Model() string {
	return e.settings.Model
}

// RunInference sends the Turn to Gemini and appends the text and function calls it returns.
func (e *GeminiEngine) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	if t == nil {
		return nil, &engine.InvalidInputError{Reason: "nil turn"}
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(e.settings.APIKey)}
	if e.settings.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(e.settings.BaseURL))
	}
	if e.settings.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(e.settings.HTTPClient))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, engine.NewUpstreamError("create gemini client", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}()

	model := client.GenerativeModel(e.settings.Model)
	if e.settings.Temperature != nil {
		model.SetTemperature(*e.settings.Temperature)
	}
	if e.settings.MaxOutputTokens != nil {
		model.SetMaxOutputTokens(*e.settings.MaxOutputTokens)
	}

	if registry, ok := tools.RegistryFrom(ctx); ok {
		if decls := functionDeclarations(registry.ListTools()); len(decls) > 0 {
			model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
			log.Debug().Int("gemini_tool_count", len(decls)).Msg("Added tools to Gemini model")
		}
	}

	system, contents := buildContents(t)
	if system != nil {
		model.SystemInstruction = system
	}
	if len(contents) == 0 || contents[len(contents)-1].Role != roleUser {
		return nil, &engine.InvalidInputError{Reason: "turn must end with a user message or tool results"}
	}

	t.SetMetadata(turns.TurnMetaKeyProvider, providerName)
	t.SetMetadata(turns.TurnMetaKeyModel, e.settings.Model)

	startTime := time.Now()
	metadata := events.NewEventMetadata(t.ID)
	metadata.Model = e.settings.Model
	e.config.Publish(ctx, events.NewStartEvent(metadata))

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	log.Debug().Int("num_blocks", len(t.Blocks)).Int("history", len(cs.History)).Str("model", e.settings.Model).Msg("Gemini RunInference started")
	resp, err := cs.SendMessage(ctx, last.Parts...)
	d := time.Since(startTime).Milliseconds()
	metadata.DurationMs = &d
	if err != nil {
		log.Error().Err(err).Str("model", e.settings.Model).Msg("Gemini request failed")
		e.config.Publish(ctx, events.NewErrorEvent(metadata, err))
		return nil, engine.NewUpstreamError("gemini generate content", err)
	}

	text, calls := appendResponse(t, resp)
	for _, c := range calls {
		inputBytes, _ := json.Marshal(c.Payload[turns.PayloadKeyArgs])
		name, _ := c.Payload[turns.PayloadKeyName].(string)
		e.config.Publish(ctx, events.NewToolCallEvent(metadata, events.ToolCall{ID: c.ID, Name: name, Input: string(inputBytes)}))
	}
	e.config.Publish(ctx, events.NewFinalEvent(metadata, text))

	log.Debug().Int("final_text_len", len(text)).Int("tool_call_count", len(calls)).Msg("Gemini RunInference completed")
	return t, nil
}

const (
	roleUser  = "user"
	roleModel = "model"
)

// buildContents converts Turn blocks into Gemini chat history. Consecutive blocks
// with the same role are merged into one Content; system blocks become the system instruction.
func buildContents(t *turns.Turn) (*genai.Content, []*genai.Content) {
	idToName := map[string]string{}
	for _, b := range t.Blocks {
		if b.Kind == turns.BlockKindToolCall {
			id, _ := b.Payload[turns.PayloadKeyID].(string)
			name, _ := b.Payload[turns.PayloadKeyName].(string)
			if id != "" && name != "" {
				idToName[id] = name
			}
		}
	}

	var system *genai.Content
	var contents []*genai.Content
	add := func(role string, p genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, p)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{p}})
	}

	for _, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindSystem:
			if s, ok := b.Payload[turns.PayloadKeyText].(string); ok && s != "" {
				if system == nil {
					system = &genai.Content{}
				}
				system.Parts = append(system.Parts, genai.Text(s))
			}
		case turns.BlockKindUser, turns.BlockKindOther:
			if s, ok := b.Payload[turns.PayloadKeyText].(string); ok && s != "" {
				add(roleUser, genai.Text(s))
			}
		case turns.BlockKindLLMText:
			if s, ok := b.Payload[turns.PayloadKeyText].(string); ok && s != "" {
				add(roleModel, genai.Text(s))
			}
		case turns.BlockKindToolCall:
			name, _ := b.Payload[turns.PayloadKeyName].(string)
			args, _ := b.Payload[turns.PayloadKeyArgs].(map[string]any)
			add(roleModel, genai.FunctionCall{Name: name, Args: args})
		case turns.BlockKindToolUse:
			id, _ := b.Payload[turns.PayloadKeyID].(string)
			name := idToName[id]
			if name == "" {
				name = "result"
			}
			add(roleUser, genai.FunctionResponse{Name: name, Response: toolResponse(b)})
		}
	}
	return system, contents
}

// toolResponse shapes a tool_use payload as the object Gemini expects.
func toolResponse(b turns.Block) map[string]any {
	if msg, ok := b.Payload[turns.PayloadKeyError].(string); ok && msg != "" {
		return map[string]any{"error": msg}
	}
	res := b.Payload[turns.PayloadKeyResult]
	switch rv := res.(type) {
	case map[string]any:
		return rv
	case string:
		var obj map[string]any
		if json.Unmarshal([]byte(rv), &obj) == nil && obj != nil {
			return obj
		}
		return map[string]any{"result": rv}
	default:
		bts, err := json.Marshal(rv)
		if err == nil {
			var obj map[string]any
			if json.Unmarshal(bts, &obj) == nil && obj != nil {
				return obj
			}
		}
		return map[string]any{"result": rv}
	}
}

// appendResponse appends llm_text and tool_call blocks for the first candidate and
// records stop reason and usage on the Turn.
func appendResponse(t *turns.Turn, resp *genai.GenerateContentResponse) (string, []turns.Block) {
	if resp == nil {
		return "", nil
	}
	if resp.UsageMetadata != nil {
		t.SetMetadata(turns.TurnMetaKeyUsage, map[string]any{
			"input_tokens":  int(resp.UsageMetadata.PromptTokenCount),
			"output_tokens": int(resp.UsageMetadata.CandidatesTokenCount),
		})
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != genai.FinishReasonUnspecified {
		t.SetMetadata(turns.TurnMetaKeyStopReason, cand.FinishReason.String())
	}
	if cand.Content == nil {
		return "", nil
	}

	var text strings.Builder
	var calls []turns.Block
	for _, p := range cand.Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			args := v.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, turns.NewToolCallBlock(uuid.NewString(), v.Name, args))
		}
	}

	if text.Len() > 0 {
		turns.AppendBlock(t, turns.NewAssistantTextBlock(text.String()))
	}
	turns.AppendBlocks(t, calls...)
	return text.String(), calls
}

func functionDeclarations(defs []tools.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, td := range defs {
		fd := &genai.FunctionDeclaration{
			Name:        td.Name,
			Description: td.Description,
		}
		// Gemini rejects object schemas without properties
		if ps := convertJSONSchemaToGenAI(td.Parameters); ps != nil && len(ps.Properties) > 0 {
			fd.Parameters = ps
		}
		decls = append(decls, fd)
	}
	return decls
}

// convertJSONSchemaToGenAI converts an invopop jsonschema.Schema to a Gemini Schema.
func convertJSONSchemaToGenAI(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{Description: s.Description}
	switch s.Type {
	case "string":
		gs.Type = genai.TypeString
		for _, v := range s.Enum {
			gs.Enum = append(gs.Enum, fmt.Sprint(v))
		}
		if s.Format == "date-time" {
			gs.Format = s.Format
		}
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	case "array":
		gs.Type = genai.TypeArray
		gs.Items = convertJSONSchemaToGenAI(s.Items)
		if gs.Items == nil {
			gs.Items = &genai.Schema{Type: genai.TypeString}
		}
	default:
		gs.Type = genai.TypeObject
		if s.Properties != nil && s.Properties.Len() > 0 {
			gs.Properties = make(map[string]*genai.Schema, s.Properties.Len())
			for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
				gs.Properties[pair.Key] = convertJSONSchemaToGenAI(pair.Value)
			}
			for _, r := range s.Required {
				if _, ok := gs.Properties[r]; ok {
					gs.Required = append(gs.Required, r)
				}
			}
		}
	}
	return gs
}
