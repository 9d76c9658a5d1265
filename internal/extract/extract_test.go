package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/snapdish/snapdish/internal/database"
)

type fakeModel struct {
	// captured call
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	// canned response
	text  string
	usage *genai.GenerateContentResponseUsageMetadata
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
		UsageMetadata: f.usage,
	}, nil
}

func validPayload(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()
	payload := map[string]any{
		"isRecipe": true,
		"name":     "Apple Pie",
		"steps": []map[string]any{
			{"position": 1, "instruction": "Make the dough."},
			{"position": 2, "instruction": "Bake for 45 minutes.", "durationMinutes": 45},
		},
		"ingredients": []map[string]any{
			{"nameEn": "Apple", "nameLocalized": "Apfel", "quantity": 6, "isNew": false, "ingredientId": 1},
			{"nameEn": "Cinnamon", "nameLocalized": "Zimt", "isNew": true},
		},
	}
	if mutate != nil {
		mutate(payload)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(out)
}

func testRequest() Request {
	return Request{
		Content:  "<html>apple pie recipe</html>",
		Language: "de",
		Ingredients: []database.Ingredient{
			{ID: 1, NameEn: "Apple", NameDe: "Apfel"},
		},
		Units: []database.MeasurementType{
			{ID: 10, NameEn: "gram", NameDe: "Gramm"},
		},
	}
}

func TestExtractText(t *testing.T) {
	model := &fakeModel{
		text: validPayload(t, nil),
		usage: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1200,
			CandidatesTokenCount: 340,
		},
	}
	e := New(model, "text-model", "vision-model")

	recipe, usage, err := e.ExtractText(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ExtractText() unexpected error: %v", err)
	}

	if model.model != "text-model" {
		t.Errorf("called model %q, want text-model", model.model)
	}
	if model.config.ResponseMIMEType != "application/json" {
		t.Errorf("response mime type = %q, want application/json", model.config.ResponseMIMEType)
	}
	if model.config.ResponseSchema == nil {
		t.Error("expected a response schema")
	}
	instruction := model.config.SystemInstruction.Parts[0].Text
	if !strings.Contains(instruction, "Apple") || !strings.Contains(instruction, "Apfel") {
		t.Error("system instruction should embed the ingredient vocabulary")
	}
	if !strings.Contains(instruction, "gram") {
		t.Error("system instruction should embed the unit vocabulary")
	}

	if recipe.Name != "Apple Pie" {
		t.Errorf("recipe name = %q, want Apple Pie", recipe.Name)
	}
	if len(recipe.Steps) != 2 || len(recipe.Ingredients) != 2 {
		t.Errorf("got %d steps / %d ingredients, want 2 / 2", len(recipe.Steps), len(recipe.Ingredients))
	}
	if usage.InputTokens != 1200 || usage.OutputTokens != 340 {
		t.Errorf("usage = %+v, want 1200 in / 340 out", usage)
	}
}

func TestExtractMediaUsesVisionModel(t *testing.T) {
	model := &fakeModel{text: validPayload(t, nil)}
	e := New(model, "text-model", "vision-model")

	req := testRequest()
	req.Content = ""
	req.Media = []byte{0xFF, 0xD8, 0xFF}
	req.MediaMIME = "image/jpeg"

	if _, _, err := e.ExtractMedia(context.Background(), req); err != nil {
		t.Fatalf("ExtractMedia() unexpected error: %v", err)
	}
	if model.model != "vision-model" {
		t.Errorf("called model %q, want vision-model", model.model)
	}
	part := model.contents[0].Parts[0]
	if part.InlineData == nil || part.InlineData.MIMEType != "image/jpeg" {
		t.Error("expected raw bytes as inline data")
	}
}

func TestExtractNotARecipe(t *testing.T) {
	model := &fakeModel{text: `{"isRecipe": false, "error": "this is a car review"}`}
	e := New(model, "text-model", "vision-model")

	_, _, err := e.ExtractText(context.Background(), testRequest())
	var notRecipe *NotARecipeError
	if !errors.As(err, &notRecipe) {
		t.Fatalf("expected *NotARecipeError, got %v", err)
	}
	if notRecipe.Message != "this is a car review" {
		t.Errorf("message = %q, want model explanation", notRecipe.Message)
	}
}

func TestExtractSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{
			name:   "missing name",
			mutate: func(p map[string]any) { p["name"] = "" },
		},
		{
			name:   "no steps",
			mutate: func(p map[string]any) { p["steps"] = []map[string]any{} },
		},
		{
			name: "step without instruction",
			mutate: func(p map[string]any) {
				p["steps"] = []map[string]any{{"position": 1, "instruction": ""}}
			},
		},
		{
			name:   "no ingredients",
			mutate: func(p map[string]any) { p["ingredients"] = []map[string]any{} },
		},
		{
			name: "ingredient missing localized name",
			mutate: func(p map[string]any) {
				p["ingredients"] = []map[string]any{{"nameEn": "Apple", "nameLocalized": ""}}
			},
		},
		{
			name: "negative quantity",
			mutate: func(p map[string]any) {
				p["ingredients"] = []map[string]any{
					{"nameEn": "Apple", "nameLocalized": "Apfel", "quantity": -1},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{text: validPayload(t, tt.mutate)}
			e := New(model, "text-model", "vision-model")

			_, _, err := e.ExtractText(context.Background(), testRequest())
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("ExtractText() error = %v, want ErrInvalidPayload", err)
			}
			var notRecipe *NotARecipeError
			if errors.As(err, &notRecipe) {
				t.Error("schema violation must not be reported as not-a-recipe")
			}
		})
	}
}

func TestExtractMalformedJSON(t *testing.T) {
	model := &fakeModel{text: `{"isRecipe": true, "name": "Pie"`}
	e := New(model, "text-model", "vision-model")

	_, _, err := e.ExtractText(context.Background(), testRequest())
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("ExtractText() error = %v, want ErrInvalidPayload", err)
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fence",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding whitespace",
			input: "\n  ```json\n{\"a\": 1}\n```  \n",
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFence(tt.input); got != tt.want {
				t.Errorf("stripFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
