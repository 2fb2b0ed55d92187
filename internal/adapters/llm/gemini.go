// Package llm adapts the hosted Gemini models to the domain.Classifier port.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/persona"
)

// GeminiOptions selects the backend: an API key for the public Gemini API
// (the default), or a GCP project + location for Vertex AI.
type GeminiOptions struct {
	APIKey    string
	ProjectID string
	Location  string
	ModelName string
}

type GeminiClassifier struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClassifier(ctx context.Context, opts GeminiOptions) (*GeminiClassifier, error) {
	modelName := opts.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{}
	switch {
	case opts.ProjectID != "":
		location := opts.Location
		if location == "" {
			location = "us-central1"
		}
		cc.Project = opts.ProjectID
		cc.Location = location
		cc.Backend = genai.BackendVertexAI
	case opts.APIKey != "":
		cc.APIKey = opts.APIKey
		cc.Backend = genai.BackendGeminiAPI
	default:
		return nil, fmt.Errorf("either an API key or a GCP project is required")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClassifier{
		client:    client,
		modelName: modelName,
	}, nil
}

// replySchema forces the model into the {reply, riskLevel, insight} shape.
var replySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"reply": {Type: genai.TypeString},
		"riskLevel": {
			Type: genai.TypeString,
			Enum: []string{"GREEN", "YELLOW", "ORANGE", "RED"},
		},
		"insight": {Type: genai.TypeString},
	},
	Required: []string{"reply", "riskLevel"},
}

// Classify implements domain.Classifier with a single generateContent call.
// No retries: retry policy belongs to the caller.
func (g *GeminiClassifier) Classify(
	ctx context.Context,
	req domain.ClassifyRequest,
) (domain.Classification, error) {
	prof, err := persona.Lookup(req.Persona)
	if err != nil {
		return domain.Classification{}, err
	}

	system := buildSystemPrompt(prof, req.Insights)

	var contents []*genai.Content
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Text, genai.RoleUser))

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   2048,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    replySchema,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		// Cancellation must surface as the context's own error so the
		// engine can tell it apart from a transport failure.
		if cerr := ctx.Err(); cerr != nil {
			return domain.Classification{}, cerr
		}
		return domain.Classification{}, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return domain.Classification{}, fmt.Errorf("gemini returned empty text")
	}

	return parseClassification(text), nil
}
