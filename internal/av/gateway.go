package av

import (
	"context"
	"encoding/json"

	"academic-vault/internal/model"
)

// GenerateRequest is a single call to the AI gateway.
type GenerateRequest struct {
	// System is optional context prepended to the conversation.
	System string

	// Messages is the conversation so far. The last message is the user's prompt.
	Messages []model.ChatMessage

	// Schema, when set, asks for JSON output conforming to this JSON schema.
	Schema json.RawMessage

	// SchemaName names the schema for providers that require one.
	SchemaName string
}

// AIGateway is the remote text-generation endpoint.
type AIGateway interface {
	// Generate returns the generated text, or a JSON document when req.Schema is set.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Prompt builds a single-turn request.
func Prompt(text string) GenerateRequest {
	return GenerateRequest{
		Messages: []model.ChatMessage{{Role: model.ChatRoleUser, Content: text}},
	}
}
