package extract

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/snapdish/snapdish/internal/database"
)

var languageNames = map[string]string{
	"en": "English",
	"de": "German",
}

// responseSchema constrains the model output to the extracted-recipe shape.
var responseSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"isRecipe": {
			Type:        "boolean",
			Description: "Whether the content describes a cooking recipe. False when it does not.",
		},
		"error": {
			Type:        "string",
			Nullable:    ptr(true),
			Description: "Short reason when isRecipe is false.",
		},
		"name":            {Type: "string", Description: "The recipe name."},
		"author":          {Type: "string", Nullable: ptr(true)},
		"description":     {Type: "string", Nullable: ptr(true)},
		"prepTimeMinutes": {Type: "integer", Nullable: ptr(true)},
		"cookTimeMinutes": {Type: "integer", Nullable: ptr(true)},
		"yield":           {Type: "string", Nullable: ptr(true), Description: "Servings or yield, e.g. '4 servings'."},
		"category":        {Type: "string", Nullable: ptr(true)},
		"cuisine":         {Type: "string", Nullable: ptr(true)},
		"keywords": {
			Type:  "array",
			Items: &genai.Schema{Type: "string"},
		},
		"imageUrl": {
			Type:        "string",
			Nullable:    ptr(true),
			Description: "URL of the main recipe image found in the source, if any.",
		},
		"steps": {
			Type: "array",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"position":        {Type: "integer", Description: "1-based step order."},
					"instruction":     {Type: "string"},
					"durationMinutes": {Type: "integer", Nullable: ptr(true)},
				},
				Required: []string{"position", "instruction"},
			},
		},
		"ingredients": {
			Type: "array",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"nameEn":        {Type: "string", Description: "Ingredient name in English."},
					"nameLocalized": {Type: "string", Description: "Ingredient name in the target language."},
					"quantity":      {Type: "number", Nullable: ptr(true)},
					"unit":          {Type: "string", Nullable: ptr(true), Description: "Unit name from the provided vocabulary, or null."},
					"note":          {Type: "string", Nullable: ptr(true), Description: "Preparation note, e.g. 'finely chopped'."},
					"isNew":         {Type: "boolean", Description: "True when the ingredient is not in the provided vocabulary."},
					"ingredientId":  {Type: "integer", Nullable: ptr(true), Description: "ID from the provided vocabulary when isNew is false."},
				},
				Required: []string{"nameEn", "nameLocalized", "isNew"},
			},
		},
	},
	Required: []string{"isRecipe", "name", "steps", "ingredients"},
}

func ptr[T any](v T) *T { return &v }

// systemInstruction builds the task instruction: output shape, the existing
// vocabularies to prefer over duplication, and the language policy.
func systemInstruction(language string, reword bool, ingredients []database.Ingredient, units []database.MeasurementType) string {
	lang := languageNames[language]
	if lang == "" {
		lang = language
	}

	var b strings.Builder
	b.WriteString("You extract structured cooking recipes from raw content. ")
	b.WriteString("Return a single JSON object matching the response schema. ")
	b.WriteString("If the content does not describe a cooking recipe, return isRecipe=false with a short error and leave the other fields empty.\n\n")

	b.WriteString("Known ingredients (id, English name, German name). Reuse these instead of inventing near-duplicates; ")
	b.WriteString("reference the id and set isNew=false when one matches:\n")
	for _, ing := range ingredients {
		fmt.Fprintf(&b, "%d\t%s\t%s\n", ing.ID, ing.NameEn, ing.NameDe)
	}
	b.WriteString("\nValid measurement units (English name). Use only these for the unit field, otherwise leave it null:\n")
	for _, u := range units {
		fmt.Fprintf(&b, "%s\n", u.NameEn)
	}

	b.WriteString("\nLanguage policy: ")
	if reword {
		fmt.Fprintf(&b, "translate and normalize all prose (name, description, step instructions, notes) into %s, retelling rather than copying.", lang)
	} else {
		fmt.Fprintf(&b, "preserve the source wording of all prose exactly; only prefix each step instruction with a single fitting category emoji. The target language for ingredient nameLocalized is %s.", lang)
	}
	b.WriteString(" Ingredient nameEn is always English regardless of policy.")

	return b.String()
}
