// Package extract turns acquired source content into a validated recipe
// payload via the extraction model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"

	"github.com/snapdish/snapdish/internal/database"
)

// Model is the narrow interface over the generative client, so extraction is
// testable with fakes.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Usage reports model token consumption for one extraction call.
type Usage struct {
	InputTokens  int32
	OutputTokens int32
}

// Request carries the acquired content plus the lookup vocabularies.
type Request struct {
	// Content is the acquired text for text extraction (HTML or transcript).
	Content string
	// Media holds raw bytes for the vision variant; MediaMIME is its type.
	Media     []byte
	MediaMIME string

	Language string
	Reword   bool

	Ingredients []database.Ingredient
	Units       []database.MeasurementType
}

type Extractor struct {
	model       Model
	textModel   string
	visionModel string
	validate    *validator.Validate
}

func New(model Model, textModel, visionModel string) *Extractor {
	return &Extractor{
		model:       model,
		textModel:   textModel,
		visionModel: visionModel,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ExtractText sends text content to the extraction model and validates the
// returned payload. A payload that fails JSON parsing or schema validation
// is a hard failure with no retry. IsRecipe=false surfaces as
// *NotARecipeError.
func (e *Extractor) ExtractText(ctx context.Context, req Request) (*Recipe, Usage, error) {
	parts := []*genai.Part{{Text: req.Content}}
	return e.generate(ctx, e.textModel, parts, req)
}

// ExtractMedia is the vision variant: raw image or PDF bytes are sent
// directly instead of text.
func (e *Extractor) ExtractMedia(ctx context.Context, req Request) (*Recipe, Usage, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: req.Media, MIMEType: req.MediaMIME}},
	}
	return e.generate(ctx, e.visionModel, parts, req)
}

func (e *Extractor) generate(ctx context.Context, model string, parts []*genai.Part, req Request) (*Recipe, Usage, error) {
	res, err := e.model.GenerateContent(ctx, model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Role: "model",
			Parts: []*genai.Part{
				{Text: systemInstruction(req.Language, req.Reword, req.Ingredients, req.Units)},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("extract: generate content: %w", err)
	}

	if len(res.Candidates) != 1 || res.Candidates[0].Content == nil ||
		len(res.Candidates[0].Content.Parts) != 1 || res.Candidates[0].Content.Parts[0].Text == "" {
		return nil, Usage{}, fmt.Errorf("%w: unexpected model response: %v", ErrInvalidPayload, res)
	}

	var usage Usage
	if res.UsageMetadata != nil {
		usage.InputTokens = res.UsageMetadata.PromptTokenCount
		usage.OutputTokens = res.UsageMetadata.CandidatesTokenCount
	}

	text := stripFence(res.Candidates[0].Content.Parts[0].Text)

	var recipe Recipe
	if err := json.Unmarshal([]byte(text), &recipe); err != nil {
		return nil, usage, fmt.Errorf("%w: unmarshal model output: %w", ErrInvalidPayload, err)
	}

	if !recipe.IsRecipe {
		msg := ""
		if recipe.Error != nil {
			msg = *recipe.Error
		}
		return nil, usage, &NotARecipeError{Message: msg}
	}

	if err := e.validate.Struct(&recipe); err != nil {
		return nil, usage, fmt.Errorf("%w: schema violation: %w", ErrInvalidPayload, err)
	}

	return &recipe, usage, nil
}

// stripFence removes an optional markdown code-fence wrapper from model
// output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
