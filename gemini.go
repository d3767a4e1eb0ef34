package main

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Coach comments on a board position.
type Coach interface {
	Hint(ctx context.Context, state [][]bool) (string, error)
}

const (
	defaultRegion = "europe-west1"
	defaultModel  = "gemini-2.5-flash"
)

// GeminiClient is a Coach backed by a Gemini model on Vertex AI.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// CoachSettings selects the Vertex AI project, region and model of the coach.
type CoachSettings struct {
	Project string
	Region  string
	Model   string
}

// withDefaults fills an empty region or model with the built-in choice.
func (cs CoachSettings) withDefaults() CoachSettings {
	if cs.Region == "" {
		cs.Region = defaultRegion
	}
	if cs.Model == "" {
		cs.Model = defaultModel
	}
	return cs
}

// NewGeminiClient creates a coach using Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS points at the service account key).
func NewGeminiClient(ctx context.Context, cs CoachSettings) (*GeminiClient, error) {
	if cs.Project == "" {
		return nil, fmt.Errorf("gemini coach: project id required")
	}
	cs = cs.withDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cs.Project,
		Location: cs.Region,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, modelName: cs.Model}, nil
}

// Model returns the name of the model answering hints.
func (g *GeminiClient) Model() string {
	return g.modelName
}

const hintPrompt = `Tu es un coach pour le jeu "Lights Out".

Règles : cliquer sur une case inverse son état et celui de ses voisines
orthogonales (haut, bas, gauche, droite). Le but est d'éteindre toutes les cases.

Voici la grille actuelle, ligne par ligne ("#" = allumée, "." = éteinte).
Les lignes et colonnes sont numérotées à partir de 0.

%s
Donne un conseil court (deux phrases maximum) pour progresser depuis cette
position, par exemple une technique comme "chasser les lumières vers le bas".
Réponds uniquement avec le conseil, sans markdown.`

// Hint asks the model for a short piece of advice on the given board.
func (g *GeminiClient) Hint(ctx context.Context, state [][]bool) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: fmt.Sprintf(hintPrompt, formatBoard(state))},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(0.4)),
			TopP:            genai.Ptr(float32(1)),
			MaxOutputTokens: 200,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty gemini response")
	}
	return text, nil
}

// formatBoard renders a board as one line of '#' (lit) and '.' per row.
func formatBoard(state [][]bool) string {
	var sb strings.Builder
	for _, row := range state {
		for _, lit := range row {
			if lit {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
