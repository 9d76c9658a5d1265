package imports

import apiError "github.com/snapdish/snapdish/internal/api/error"

// TokensUsed reports model token consumption for the extraction call.
type TokensUsed struct {
	InputTokens  int32 `json:"inputTokens"`
	OutputTokens int32 `json:"outputTokens"`
}

type ImportStats struct {
	StepsCount          int        `json:"stepsCount"`
	IngredientsCount    int        `json:"ingredientsCount"`
	NewIngredientsCount int        `json:"newIngredientsCount"`
	TokensUsed          TokensUsed `json:"tokensUsed"`
}

// ImportResponse is the structured outcome of an import. Recognized failure
// modes are returned with Success=false, a machine-readable ErrorCode and a
// human-readable Error, at a successful transport status.
type ImportResponse struct {
	Success    bool               `json:"success"`
	RecipeID   *int64             `json:"recipeId,omitempty"`
	RecipeName *string            `json:"recipeName,omitempty"`
	ErrorCode  apiError.ErrorCode `json:"errorCode,omitempty"`
	Error      *string            `json:"error,omitempty"`

	TokensDeducted  *int `json:"tokensDeducted,omitempty"`
	TokensRemaining *int `json:"tokensRemaining,omitempty"`
	TokensRequired  *int `json:"tokensRequired,omitempty"`
	TokensAvailable *int `json:"tokensAvailable,omitempty"`

	RateLimitRemaining *int    `json:"rateLimitRemaining,omitempty"`
	RateLimitReset     *string `json:"rateLimitReset,omitempty"`

	Stats *ImportStats `json:"stats,omitempty"`
}

// QuotaResponse reports the account's current rate-limit and token state.
type QuotaResponse struct {
	TokensAvailable    int    `json:"tokensAvailable"`
	RateLimitRemaining int    `json:"rateLimitRemaining"`
	RateLimitReset     string `json:"rateLimitReset"`
}
