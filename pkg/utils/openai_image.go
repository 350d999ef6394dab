package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const openAIProviderName = "openai"

// OpenAIImageClient edits images through the OpenAI images/edits endpoint.
type OpenAIImageClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIImageClient(apiKey, model string) *OpenAIImageClient {
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIImageClient{client: openai.NewClient(apiKey), model: model}
}

// newOpenAIImageClientWithConfig is used by tests pointing at an httptest server.
func newOpenAIImageClientWithConfig(cfg openai.ClientConfig, model string) *OpenAIImageClient {
	return &OpenAIImageClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIImageClient) Name() string { return openAIProviderName }

// namedImage lets the multipart builder pick a filename and content type.
type namedImage struct {
	*bytes.Reader
	name        string
	contentType string
}

func (n namedImage) Name() string        { return n.name }
func (n namedImage) ContentType() string { return n.contentType }

func (c *OpenAIImageClient) Generate(ctx context.Context, image []byte, mimeType, prompt string) (ProviderImage, error) {
	req := openai.ImageEditRequest{
		Image: namedImage{
			Reader:      bytes.NewReader(image),
			name:        "input" + ExtensionForMIME(mimeType),
			contentType: mimeType,
		},
		Prompt: prompt,
		Model:  c.model,
		N:      1,
	}
	// gpt-image models always answer in base64 and reject response_format.
	if c.model == openai.CreateImageModelDallE2 {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	resp, err := c.client.CreateEditImage(ctx, req)
	if err != nil {
		return ProviderImage{}, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return ProviderImage{}, &ProviderError{Provider: openAIProviderName, Kind: ProviderRefused, Text: "no image in response"}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return ProviderImage{}, &ProviderError{Provider: openAIProviderName, Kind: ProviderPermanent, Err: fmt.Errorf("decode image: %w", err)}
	}
	return ProviderImage{Data: data, MIMEType: http.DetectContentType(data)}, nil
}

func (c *OpenAIImageClient) Close() error { return nil }

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		if code == "content_policy_violation" || code == "moderation_blocked" {
			return &ProviderError{Provider: openAIProviderName, Kind: ProviderRefused, Text: apiErr.Message, Err: err}
		}
		return &ProviderError{Provider: openAIProviderName, Kind: httpStatusKind(apiErr.HTTPStatusCode), Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: openAIProviderName, Kind: httpStatusKind(reqErr.HTTPStatusCode), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: openAIProviderName, Kind: ProviderTransient, Err: err}
	}
	return &ProviderError{Provider: openAIProviderName, Kind: ProviderPermanent, Err: err}
}
