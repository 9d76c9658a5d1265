package extract

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload marks model output that could not be decoded or that
// violates the fixed recipe schema. Fatal for the request, no retry.
var ErrInvalidPayload = errors.New("extract: invalid model payload")

// Recipe is the payload the extraction model returns. It exists only in
// memory between extraction and persistence. Nullable fields use pointers so
// absence is distinguishable from a zero value.
type Recipe struct {
	// IsRecipe reports whether the model recognized the content as a recipe.
	// A false value is a recognized outcome, not a system error.
	IsRecipe bool    `json:"isRecipe"`
	Error    *string `json:"error"`

	Name            string   `json:"name" validate:"required"`
	Author          *string  `json:"author"`
	Description     *string  `json:"description"`
	PrepTimeMinutes *int32   `json:"prepTimeMinutes"`
	CookTimeMinutes *int32   `json:"cookTimeMinutes"`
	Yield           *string  `json:"yield"`
	Category        *string  `json:"category"`
	Cuisine         *string  `json:"cuisine"`
	Keywords        []string `json:"keywords"`
	// ImageURL is a candidate hero image found in the source, if any.
	ImageURL *string `json:"imageUrl"`

	Steps       []Step             `json:"steps" validate:"min=1,dive"`
	Ingredients []RecipeIngredient `json:"ingredients" validate:"min=1,dive"`
}

type Step struct {
	Position        int32  `json:"position"`
	Instruction     string `json:"instruction" validate:"required"`
	DurationMinutes *int32 `json:"durationMinutes"`
}

type RecipeIngredient struct {
	NameEn        string   `json:"nameEn" validate:"required"`
	NameLocalized string   `json:"nameLocalized" validate:"required"`
	Quantity      *float64 `json:"quantity" validate:"omitempty,gte=0"`
	// Unit is the free-text unit name; it is matched against the measurement
	// type vocabulary later and left unset when no exact match exists.
	Unit *string `json:"unit"`
	Note *string `json:"note"`
	// IsNew marks an ingredient the model did not find in the provided
	// vocabulary. IngredientID references an existing ingredient otherwise.
	IsNew        bool   `json:"isNew"`
	IngredientID *int64 `json:"ingredientId"`
}

// NotARecipeError reports that the model explicitly recognized the content
// as something other than a recipe.
type NotARecipeError struct {
	Message string
}

func (e *NotARecipeError) Error() string {
	if e.Message == "" {
		return "extract: content is not a recipe"
	}
	return fmt.Sprintf("extract: content is not a recipe: %s", e.Message)
}
