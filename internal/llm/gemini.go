package llm

import (
	"context"
	"net/http"

	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, baseURL, model string, httpClient *http.Client) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	system, conv := splitSystem(req.Messages)

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.TopP > 0 {
		gc.TopP = genai.Ptr(float32(req.TopP))
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(conv), gc)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func geminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		if m.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(m.Image.Data, m.Image.MIMEType))
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}
