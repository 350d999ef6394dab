package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const geminiProviderName = "gemini"

// GeminiImageClient edits images with a Gemini image-capable model.
type GeminiImageClient struct {
	client *genai.Client
	model  string
}

func NewGeminiImageClient(ctx context.Context, apiKey, model string) (*GeminiImageClient, error) {
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiImageClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiImageClient) Name() string { return geminiProviderName }

func (c *GeminiImageClient) Generate(ctx context.Context, image []byte, mimeType, prompt string) (ProviderImage, error) {
	m := c.client.GenerativeModel(c.model)

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: image}, genai.Text(prompt))
	if err != nil {
		return ProviderImage{}, classifyGeminiError(err)
	}
	return extractGeminiImage(resp)
}

func (c *GeminiImageClient) Close() error {
	return c.client.Close()
}

// extractGeminiImage returns the first inline image of the response. A
// response carrying only text is a refusal.
func extractGeminiImage(resp *genai.GenerateContentResponse) (ProviderImage, error) {
	var text strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				switch p := part.(type) {
				case genai.Blob:
					if strings.HasPrefix(p.MIMEType, "image/") && len(p.Data) > 0 {
						return ProviderImage{Data: p.Data, MIMEType: p.MIMEType}, nil
					}
				case genai.Text:
					text.WriteString(string(p))
				}
			}
		}
	}

	answer := strings.TrimSpace(text.String())
	if answer == "" {
		answer = "no image in response"
	}
	return ProviderImage{}, &ProviderError{Provider: geminiProviderName, Kind: ProviderRefused, Text: answer}
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ProviderError{Provider: geminiProviderName, Kind: ProviderRefused, Text: blocked.Error(), Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ProviderError{Provider: geminiProviderName, Kind: httpStatusKind(gerr.Code), Err: err}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		kind := ProviderPermanent
		switch st.Code() {
		case codes.Internal, codes.Unavailable, codes.DeadlineExceeded, codes.Unknown, codes.ResourceExhausted, codes.Aborted:
			kind = ProviderTransient
		}
		return &ProviderError{Provider: geminiProviderName, Kind: kind, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: geminiProviderName, Kind: ProviderTransient, Err: err}
	}
	return &ProviderError{Provider: geminiProviderName, Kind: ProviderPermanent, Err: err}
}

func httpStatusKind(code int) ProviderErrorKind {
	if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return ProviderTransient
	}
	return ProviderPermanent
}
