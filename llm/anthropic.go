package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pensionlab/guidancecore/errors"
)

type AnthropicClient struct {
	client anthropic.Client
	model  string
}

var _ Client = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	params := c.baseParams(req)

	res, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrapf(err, "anthropic completion failed")
	}

	return collectText(res), nil
}

// CompleteJSON instructs the model to answer with a single JSON object
// matching the reflected schema. The API has no schema-enforced output
// mode, so the schema rides in the system prompt and the response is
// validated by unmarshalling.
func (c *AnthropicClient) CompleteJSON(ctx context.Context, req Request, out any) error {
	schemaMap, err := reflectSchema(out)
	if err != nil {
		return err
	}
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal schema")
	}

	jsonReq := req
	jsonReq.System = strings.TrimSpace(req.System + "\n\nRespond with a single JSON object matching this schema, and nothing else:\n" + string(schemaJSON))

	params := c.baseParams(jsonReq)
	res, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return errors.Wrapf(err, "anthropic structured completion failed")
	}

	text := strings.TrimSpace(collectText(res))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal structured output")
	}
	return nil
}

func (c *AnthropicClient) baseParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: req.maxTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

func collectText(res *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range res.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
