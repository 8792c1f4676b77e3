package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// ChatTurn is one prior conversation turn handed to the completion model
type ChatTurn struct {
	Role string // "user" or "assistant"
	Text string
}

// Completer is the opaque AI completion capability: a behavior prompt, the
// recent conversation, the latest inbound text, one reply out. An empty
// reply is a valid outcome, not an error.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []ChatTurn, userText string) (string, error)
}

// GenAIService generates replies with Google's Gemini API
type GenAIService struct {
	client *genai.Client
	model  string
}

// NewGenAIService creates a new Gemini-backed completer from the
// environment (GEMINI_API_KEY, optional GEMINI_MODEL)
func NewGenAIService() (*GenAIService, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY in environment variables")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIService{
		client: client,
		model:  model,
	}, nil
}

// Complete asks the model for the next reply in the conversation
func (g *GenAIService) Complete(ctx context.Context, systemPrompt string, history []ChatTurn, userText string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	return strings.TrimSpace(result.Text()), nil
}
