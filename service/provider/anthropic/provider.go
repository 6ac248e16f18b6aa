// Package anthropic implements the provider contract over the official
// Anthropic SDK. A turn is executed as a single Messages call; the complete
// reply is then replayed as delta events so downstream consumers see one
// uniform streaming shape regardless of vendor.
package anthropic

import (
	"context"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/plenum-ai/plenum/service/provider"
)

const defaultChunkRunes = 48

// Config contains configuration for creating a new Provider.
type Config struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// Model is the default model when a request does not name one.
	Model string
	// MaxTokens caps the reply when a request does not set it.
	MaxTokens int
	// ChunkRunes sets the delta chunk size when replaying a reply.
	ChunkRunes int
}

// Provider calls the Anthropic Messages API.
type Provider struct {
	client     anthropic.Client
	model      string
	maxTokens  int
	chunkRunes int
}

// New creates an Anthropic provider.
func New(cfg Config) (*Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is not set")
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	chunkRunes := cfg.ChunkRunes
	if chunkRunes <= 0 {
		chunkRunes = defaultChunkRunes
	}
	return &Provider{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		maxTokens:  maxTokens,
		chunkRunes: chunkRunes,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

// Stream executes one Messages call and replays the reply as events.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) (provider.Stream, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic call failed")
	}

	var events []*provider.Event
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			for _, chunk := range chunks(variant.Text, p.chunkRunes) {
				events = append(events, &provider.Event{Type: provider.EventDelta, Text: chunk})
			}
		case anthropic.ToolUseBlock:
			events = append(events, &provider.Event{
				Type:     provider.EventToolCall,
				ToolID:   variant.ID,
				ToolName: variant.Name,
				ToolArgs: variant.Input,
			})
		}
	}
	events = append(events, &provider.Event{
		Type: provider.EventDone,
		Usage: &provider.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	})
	return &replayStream{events: events}, nil
}

func toolParams(tools []provider.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Properties,
					Required:   tool.Required,
				},
			},
		})
	}
	return out
}

// chunks splits text into rune windows so the relay can emit fixed-size
// deltas.
func chunks(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

type replayStream struct {
	events []*provider.Event
	next   int
}

func (s *replayStream) Recv() (*provider.Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	event := s.events[s.next]
	s.next++
	return event, nil
}

var _ provider.Provider = (*Provider)(nil)
