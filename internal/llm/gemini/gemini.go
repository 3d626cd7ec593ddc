package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mmrag/internal/domain"
)

// ErrEmptyResponse is returned when the model produces no candidate text.
var ErrEmptyResponse = errors.New("gemini response was empty")

// generator is the subset of *genai.GenerativeModel used here.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Model is a single-turn Gemini chat model.
type Model struct {
	client *genai.Client
	model  generator
}

// New creates a Gemini model client with the given sampling temperature.
func New(ctx context.Context, apiKey, modelName string, temperature float32) (*Model, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	gm := client.GenerativeModel(modelName)
	gm.SetTemperature(temperature)
	return &Model{client: client, model: gm}, nil
}

// Generate sends the prompt as one user turn and returns the text of the
// first candidate.
func (m *Model) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	parts, err := toParts(p)
	if err != nil {
		return "", err
	}
	resp, err := m.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// Close releases the underlying client.
func (m *Model) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func toParts(p domain.Prompt) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, 1+len(p.Images))
	parts = append(parts, genai.Text(p.Text))
	for i, img := range p.Images {
		data, err := base64.StdEncoding.DecodeString(img.Base64())
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		parts = append(parts, genai.Blob{MIMEType: imageMIME(img.MIME(), data), Data: data})
	}
	return parts, nil
}

// imageMIME keeps an explicit MIME type and replaces the default JPEG label
// with the sniffed type when the bytes are a different image format.
func imageMIME(declared string, data []byte) string {
	if declared != "" && declared != domain.DefaultImageMIME {
		return declared
	}
	detected := mimetype.Detect(data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return domain.DefaultImageMIME
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

var _ domain.ChatModel = (*Model)(nil)
