package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/pensionlab/guidancecore/errors"
)

type OpenAIClient struct {
	client openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := c.baseParams(req)

	res, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrapf(err, "openai completion failed")
	}
	if len(res.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	return res.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) CompleteJSON(ctx context.Context, req Request, out any) error {
	schemaMap, err := reflectSchema(out)
	if err != nil {
		return err
	}

	params := c.baseParams(req)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "output",
				Schema: schemaMap,
				Strict: openai.Bool(true),
			},
		},
	}

	res, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return errors.Wrapf(err, "openai structured completion failed")
	}
	if len(res.Choices) == 0 {
		return errors.New("openai returned no choices")
	}

	if err := json.Unmarshal([]byte(res.Choices[0].Message.Content), out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal structured output")
	}
	return nil
}

func (c *OpenAIClient) baseParams(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}
