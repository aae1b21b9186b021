package vision

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.GenerationConfig.ResponseMIMEType = "application/json"
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) EstimateMeal(ctx context.Context, images []ImageRef, description string) (*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("vertex: no images")
	}

	parts := []vertexgenai.Part{vertexgenai.Text(buildPrompt(len(images), description))}
	for _, img := range images {
		// Vertex reads bucket objects directly; it cannot fetch
		// arbitrary signed HTTP URLs.
		if img.GSURI == "" {
			continue
		}
		parts = append(parts, vertexgenai.FileData{
			MIMEType: "image/jpeg",
			FileURI:  img.GSURI,
		})
	}
	if len(parts) == 1 {
		return nil, errors.New("vertex: no gs:// image uris")
	}

	resp, err := v.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}

	return parseResult(text.String())
}
