// Package imports contains handlers for the import endpoints.
package imports

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	apiError "github.com/snapdish/snapdish/internal/api/error"
	"github.com/snapdish/snapdish/internal/api/requestid"
	"github.com/snapdish/snapdish/internal/api/token"
	"github.com/snapdish/snapdish/internal/env"
	"github.com/snapdish/snapdish/internal/extract"
	"github.com/snapdish/snapdish/internal/importer"
	snapjson "github.com/snapdish/snapdish/internal/json"
	"github.com/snapdish/snapdish/internal/mediafile"
	"github.com/snapdish/snapdish/internal/meter"
	"github.com/snapdish/snapdish/internal/source"
	"github.com/snapdish/snapdish/internal/timestamp"
	"github.com/snapdish/snapdish/internal/transcript"
)

// HandleImportURL imports a recipe from a webpage or video URL.
func HandleImportURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e := env.EnvFromCtx(ctx)
	requestID := strconv.FormatUint(requestid.ExtractRequestID(ctx), 10)
	accountID, err := token.AccountIDFromCtx(ctx)
	if err != nil {
		e.Logger.ErrorContext(ctx, "failed to extract account id from context", slog.Any("error", err))
		_ = apiError.EncodeInternalError(w, requestID)
		return
	}

	var request URLImportRequest
	if err := snapjson.DecodeJSON(&request, json.NewDecoder(r.Body)); err != nil {
		e.Logger.ErrorContext(ctx, "failed to decode request", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, "bad request", requestID)
		return
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(request); err != nil {
		e.Logger.ErrorContext(ctx, "failed to validate request", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, "bad request", requestID)
		return
	}

	window, err := parseWindow(request.StartTimestamp, request.EndTimestamp)
	if err != nil {
		e.Logger.ErrorContext(ctx, "failed to parse trim window", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, err.Error(), requestID)
		return
	}

	result, err := e.Importer.ImportURL(ctx, importer.URLImport{
		AccountID: accountID,
		URL:       request.URL,
		Language:  request.Language,
		Reword:    request.Reword,
		Window:    window,
	})
	writeImportOutcome(w, r, result, err, requestID)
}

// HandleImportMedia imports a recipe from a single uploaded image or PDF.
func HandleImportMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e := env.EnvFromCtx(ctx)
	requestID := strconv.FormatUint(requestid.ExtractRequestID(ctx), 10)
	accountID, err := token.AccountIDFromCtx(ctx)
	if err != nil {
		e.Logger.ErrorContext(ctx, "failed to extract account id from context", slog.Any("error", err))
		_ = apiError.EncodeInternalError(w, requestID)
		return
	}

	var request MediaImportRequest
	if err := snapjson.DecodeJSON(&request, json.NewDecoder(r.Body)); err != nil {
		e.Logger.ErrorContext(ctx, "failed to decode request", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, "bad request", requestID)
		return
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(request); err != nil {
		e.Logger.ErrorContext(ctx, "failed to validate request", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, "bad request", requestID)
		return
	}

	kind := source.KindImage
	if request.MediaType == "pdf" {
		kind = source.KindPDF
	}

	result, err := e.Importer.ImportMedia(ctx, importer.MediaImport{
		AccountID:    accountID,
		StoragePaths: request.StoragePaths,
		Kind:         kind,
		Language:     request.Language,
		Reword:       request.Reword,
	})
	writeImportOutcome(w, r, result, err, requestID)
}

// HandleQuota reports the account's remaining quota and token balance.
func HandleQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e := env.EnvFromCtx(ctx)
	requestID := strconv.FormatUint(requestid.ExtractRequestID(ctx), 10)
	accountID, err := token.AccountIDFromCtx(ctx)
	if err != nil {
		e.Logger.ErrorContext(ctx, "failed to extract account id from context", slog.Any("error", err))
		_ = apiError.EncodeInternalError(w, requestID)
		return
	}

	quota, err := e.Gate.Quota(ctx, accountID)
	if err != nil {
		e.Logger.ErrorContext(ctx, "failed to read quota", slog.Any("error", err))
		_ = apiError.EncodeInternalError(w, requestID)
		return
	}

	writeJSON(w, r, QuotaResponse{
		TokensAvailable:    quota.Balance,
		RateLimitRemaining: quota.RateLimitRemaining,
		RateLimitReset:     quota.RateLimitReset.Format(time.RFC3339),
	})
}

func parseWindow(start, end string) (transcript.Window, error) {
	var w transcript.Window
	var err error
	w.Start, w.HasStart, err = timestamp.ParseOptional(start)
	if err != nil {
		return transcript.Window{}, err
	}
	w.End, w.HasEnd, err = timestamp.ParseOptional(end)
	if err != nil {
		return transcript.Window{}, err
	}
	return w, nil
}

// writeImportOutcome maps the pipeline result or error onto the structured
// response. Recognized failures are payload-level, at transport success.
func writeImportOutcome(w http.ResponseWriter, r *http.Request, result *importer.Result, err error, requestID string) {
	ctx := r.Context()
	e := env.EnvFromCtx(ctx)

	if err == nil {
		writeJSON(w, r, ImportResponse{
			Success:         true,
			RecipeID:        &result.RecipeID,
			RecipeName:      &result.RecipeName,
			TokensDeducted:  &result.TokensDeducted,
			TokensRemaining: &result.TokensRemaining,
			Stats: &ImportStats{
				StepsCount:          result.Stats.StepsCount,
				IngredientsCount:    result.Stats.IngredientsCount,
				NewIngredientsCount: result.Stats.NewIngredientsCount,
				TokensUsed: TokensUsed{
					InputTokens:  result.Stats.InputTokens,
					OutputTokens: result.Stats.OutputTokens,
				},
			},
		})
		return
	}

	// Malformed input surfaces at the transport level.
	if errors.Is(err, source.ErrInvalidURL) || errors.Is(err, source.ErrNoVideoID) ||
		errors.Is(err, mediafile.ErrSingleFileOnly) || errors.Is(err, mediafile.ErrTooSmall) ||
		errors.Is(err, mediafile.ErrTooLarge) || errors.Is(err, mediafile.ErrUnsupportedType) {
		e.Logger.ErrorContext(ctx, "invalid import request", slog.Any("error", err))
		_ = apiError.EncodeError(w, apiError.BadRequest, err.Error(), requestID)
		return
	}

	var rateErr *meter.RateLimitError
	if errors.As(err, &rateErr) {
		reset := rateErr.ResetAt.Format(time.RFC3339)
		writeJSON(w, r, ImportResponse{
			Success:            false,
			ErrorCode:          apiError.RateLimitExceeded,
			Error:              strPtr("rate limit exceeded"),
			RateLimitRemaining: &rateErr.Remaining,
			RateLimitReset:     &reset,
		})
		return
	}

	var tokensErr *meter.InsufficientTokensError
	if errors.As(err, &tokensErr) {
		writeJSON(w, r, ImportResponse{
			Success:         false,
			ErrorCode:       apiError.InsufficientTokens,
			Error:           strPtr("insufficient tokens"),
			TokensRequired:  &tokensErr.Required,
			TokensAvailable: &tokensErr.Available,
		})
		return
	}

	if errors.Is(err, transcript.ErrNoTranscript) {
		writeJSON(w, r, ImportResponse{
			Success:   false,
			ErrorCode: apiError.TranscriptUnavailable,
			Error:     strPtr("no transcript available for this video"),
		})
		return
	}

	var notRecipe *extract.NotARecipeError
	if errors.As(err, &notRecipe) {
		msg := "the content does not appear to be a recipe"
		if notRecipe.Message != "" {
			msg = notRecipe.Message
		}
		writeJSON(w, r, ImportResponse{
			Success:   false,
			ErrorCode: apiError.NotARecipe,
			Error:     &msg,
		})
		return
	}

	if errors.Is(err, importer.ErrAcquisition) {
		e.Logger.ErrorContext(ctx, "acquiring source content failed", slog.Any("error", err))
		writeJSON(w, r, ImportResponse{
			Success:   false,
			ErrorCode: apiError.AcquisitionFailed,
			Error:     strPtr("the source content could not be retrieved"),
		})
		return
	}

	if errors.Is(err, extract.ErrInvalidPayload) {
		e.Logger.ErrorContext(ctx, "extraction produced an invalid payload", slog.Any("error", err))
		writeJSON(w, r, ImportResponse{
			Success:   false,
			ErrorCode: apiError.ExtractionFailed,
			Error:     strPtr("the recipe could not be read from the content"),
		})
		return
	}

	// Anything else is unexpected: log the detail, report a non-specific
	// message, still at transport success.
	e.Logger.ErrorContext(ctx, "import failed", slog.Any("error", err))
	writeJSON(w, r, ImportResponse{
		Success:   false,
		ErrorCode: apiError.UnknownError,
		Error:     strPtr("the recipe could not be imported"),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	e := env.EnvFromCtx(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		e.Logger.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

func strPtr(s string) *string { return &s }
