package av

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"academic-vault/internal/model"
)

// Feature is an AI analysis a user can request.
type Feature string

const (
	FeatureSummary    Feature = "summary"
	FeatureConcepts   Feature = "concepts"
	FeatureQuestions  Feature = "questions"
	FeatureTimeline   Feature = "timeline"
	FeatureFlashcards Feature = "flashcards"
)

// Features lists the file analyses in display order.
var Features = []Feature{FeatureSummary, FeatureConcepts, FeatureQuestions, FeatureTimeline, FeatureFlashcards}

// QuickStudyTools lists the analyses available for pasted text.
var QuickStudyTools = []Feature{FeatureSummary, FeatureConcepts, FeatureFlashcards}

var filePrompts = map[Feature]string{
	FeatureSummary:    "Provide a comprehensive, well-structured summary of the following document:",
	FeatureConcepts:   "Extract the key concepts, terms, and important people from the following document. Present them as a markdown bulleted list:",
	FeatureQuestions:  "Generate a list of 3-5 open-ended study questions based on the main topics of the following document. Present them as a markdown numbered list:",
	FeatureTimeline:   "Analyze the following document for key events or a sequence of steps. Create a timeline from this information. If the document is not event-based, list the main sections in order. Present as a markdown list.",
	FeatureFlashcards: "Based on the following document, create a JSON array of 5 flashcards. Each flashcard should have a 'question' and 'answer' field. The questions should cover the most important topics in the text.",
}

var textPrompts = map[Feature]string{
	FeatureSummary:    "Provide a concise summary of the following text:",
	FeatureConcepts:   "Extract the key concepts, terms, and people from the following text. Present them in a markdown bulleted list:",
	FeatureFlashcards: "Based on the following text, create 5 flashcards with a 'question' and 'answer'.:",
}

// FlashcardSchema is the JSON schema requested for flashcard generation.
var FlashcardSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "flashcards": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "question": {"type": "string"},
          "answer": {"type": "string"}
        },
        "required": ["question", "answer"]
      }
    }
  },
  "required": ["flashcards"]
}`)

const coachInstruction = `You are a helpful study coach. Your goal is to help the user understand the provided document. The document is titled "%s". The full text content of the document is: 

---
%s
---

Base all your answers on this document content. If the user asks something outside the scope of the document, politely state that you can only answer questions about the provided material.`

// Analyzer runs AI analyses over file contents and caches the results in the
// file's ai_content through the session's Controller.
type Analyzer struct {
	controller *Controller
	store      ObjectStore
	gateway    AIGateway
	logger     Logger
}

// NewAnalyzer creates an Analyzer bound to a session.
func NewAnalyzer(controller *Controller, store ObjectStore, gateway AIGateway, logger Logger) *Analyzer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Analyzer{
		controller: controller,
		store:      store,
		gateway:    gateway,
		logger:     logger,
	}
}

// Generate runs feature over the file's text and stores the result in its
// ai_content. On failure the cached ai_content is left unchanged.
// Results for files the caller does not own are returned but not stored.
func (a *Analyzer) Generate(ctx context.Context, fileID string, feature Feature) (*model.AnalysisContent, error) {
	instruction, ok := filePrompts[feature]
	if !ok {
		return nil, fmt.Errorf("%w: unknown analysis %q", ErrValidation, feature)
	}

	file, err := a.controller.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	text, err := a.FileText(ctx, file)
	if err != nil {
		return nil, err
	}

	req := Prompt(instruction + "\n\n---\n" + text + "\n---")
	if feature == FeatureFlashcards {
		req.Schema = FlashcardSchema
		req.SchemaName = "flashcards"
	}
	out, err := a.gateway.Generate(ctx, req)
	if err != nil {
		a.logger.Error("analysis failed", "file_id", fileID, "feature", feature, "error", err)
		return nil, fmt.Errorf("generating %s: %w", feature, err)
	}

	content := file.AIContent.Clone()
	if content == nil {
		content = &model.AnalysisContent{}
	}
	switch feature {
	case FeatureSummary:
		content.Summary = out
	case FeatureConcepts:
		content.Concepts = out
	case FeatureQuestions:
		content.Questions = out
	case FeatureTimeline:
		content.Timeline = out
	case FeatureFlashcards:
		cards, err := ParseFlashcards(out)
		if err != nil {
			return nil, fmt.Errorf("generating %s: %w", feature, err)
		}
		content.Flashcards = cards
	}

	if err := a.save(ctx, file, content); err != nil {
		return nil, err
	}
	a.logger.Info("analysis generated", "file_id", fileID, "feature", feature)
	return content, nil
}

// Chat sends message to the study coach for a file, with the document text as
// context and the stored conversation as history. The user turn and the reply
// are appended to the chat history only when the reply arrives.
func (a *Analyzer) Chat(ctx context.Context, fileID, message string) (*model.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	file, err := a.controller.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	text, err := a.FileText(ctx, file)
	if err != nil {
		return nil, err
	}

	content := file.AIContent.Clone()
	if content == nil {
		content = &model.AnalysisContent{}
	}
	turn := model.ChatMessage{Role: model.ChatRoleUser, Content: message}
	req := GenerateRequest{
		System:   fmt.Sprintf(coachInstruction, file.Title, text),
		Messages: append(slices.Clone(content.ChatHistory), turn),
	}
	out, err := a.gateway.Generate(ctx, req)
	if err != nil {
		a.logger.Error("study coach failed", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("asking study coach: %w", err)
	}

	reply := model.ChatMessage{Role: model.ChatRoleModel, Content: out}
	content.ChatHistory = append(content.ChatHistory, turn, reply)
	if err := a.save(ctx, file, content); err != nil {
		return nil, err
	}
	return &reply, nil
}

// StudyResult is the output of a quick-study tool.
type StudyResult struct {
	Tool       Feature
	Text       string
	Flashcards []model.Flashcard
}

// QuickStudy runs tool over pasted text. Nothing is stored, so guests may use it.
func (a *Analyzer) QuickStudy(ctx context.Context, text string, tool Feature) (*StudyResult, error) {
	instruction, ok := textPrompts[tool]
	if !ok {
		return nil, fmt.Errorf("%w: unknown study tool %q", ErrValidation, tool)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}

	req := Prompt(instruction + "\n\n---\n" + text + "\n---")
	if tool == FeatureFlashcards {
		req.Schema = FlashcardSchema
		req.SchemaName = "flashcards"
	}
	out, err := a.gateway.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", tool, err)
	}

	result := &StudyResult{Tool: tool}
	if tool == FeatureFlashcards {
		if result.Flashcards, err = ParseFlashcards(out); err != nil {
			return nil, fmt.Errorf("generating %s: %w", tool, err)
		}
		return result, nil
	}
	result.Text = out
	return result, nil
}

// FileText downloads the stored content of a file as text. Content that is
// not valid UTF-8 is replaced with a notice.
func (a *Analyzer) FileText(ctx context.Context, file *model.File) (string, error) {
	key := file.StoragePath()
	if key == "" {
		return "", fmt.Errorf("%w: file %s has no stored content", ErrNotFound, file.ID)
	}

	var buf bytes.Buffer
	if err := a.store.Get(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("downloading file content: %w", err)
	}
	if !utf8.Valid(buf.Bytes()) {
		return fmt.Sprintf("Could not read content from file: %s. It may be a binary file.", file.Title), nil
	}
	return buf.String(), nil
}

// ParseFlashcards decodes the structured flashcard response.
func ParseFlashcards(out string) ([]model.Flashcard, error) {
	var resp struct {
		Flashcards []model.Flashcard `json:"flashcards"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, fmt.Errorf("parsing flashcards: %w", err)
	}
	return resp.Flashcards, nil
}

func (a *Analyzer) save(ctx context.Context, file *model.File, content *model.AnalysisContent) error {
	if !a.controller.canModify(file.OwnerID) {
		a.logger.Debug("not caching analysis for file owned by another user", "file_id", file.ID)
		return nil
	}
	next := file.Clone()
	next.AIContent = content
	if err := a.controller.UpdateFile(ctx, next); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	return nil
}
