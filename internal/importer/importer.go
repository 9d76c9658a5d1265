// Package importer orchestrates one recipe import: gate, acquisition,
// extraction, resolution, persistence, media attachment and deduction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"

	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/extract"
	"github.com/snapdish/snapdish/internal/ingredient"
	"github.com/snapdish/snapdish/internal/mediafile"
	"github.com/snapdish/snapdish/internal/meter"
	"github.com/snapdish/snapdish/internal/source"
	"github.com/snapdish/snapdish/internal/transcript"
	"github.com/snapdish/snapdish/internal/video"
	"github.com/snapdish/snapdish/internal/webpage"
)

// ErrAcquisition marks a failure to obtain the source content (fetch,
// metadata, transcript or upload read). The import stops before any paid
// work.
var ErrAcquisition = errors.New("importer: source content unavailable")

// Stage names one state of the import state machine. Transitions are
// reported through the stage hook as pipeline stages actually complete.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageRateChecked   Stage = "rate_checked"
	StageBalanceCheck  Stage = "balance_checked"
	StageAcquiring     Stage = "acquiring"
	StageExtracting    Stage = "extracting"
	StageRejected      Stage = "rejected"
	StageValidated     Stage = "validated"
	StagePersisting    Stage = "persisting"
	StageMediaAttached Stage = "media_attached"
	StageDeducted      Stage = "deducted"
	StageDone          Stage = "done"
	StageErrored       Stage = "errored"
)

// DB is the database surface the importer uses.
type DB interface {
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	ListMeasurementTypes(ctx context.Context) ([]database.MeasurementType, error)
	CreateRecipe(ctx context.Context, arg database.CreateRecipeParams) (int64, error)
	CreateRecipeStep(ctx context.Context, arg database.CreateRecipeStepParams) (int64, error)
	CreateRecipeIngredient(ctx context.Context, arg database.CreateRecipeIngredientParams) (int64, error)
	UpdateRecipeImage(ctx context.Context, arg database.UpdateRecipeImageParams) error
}

// Gate brackets the pipeline with the rate and balance checks.
type Gate interface {
	Admit(ctx context.Context, accountID int64, kind source.Kind) (*meter.Admission, error)
	Deduct(ctx context.Context, accountID int64, cost, balance int) int
	RecordAttempt(ctx context.Context, accountID int64, kind source.Kind, succeeded bool)
}

type WebpageFetcher interface {
	Fetch(ctx context.Context, url string) (*webpage.Page, error)
}

type Extractor interface {
	ExtractText(ctx context.Context, req extract.Request) (*extract.Recipe, extract.Usage, error)
	ExtractMedia(ctx context.Context, req extract.Request) (*extract.Recipe, extract.Usage, error)
}

type Resolver interface {
	Resolve(ctx context.Context, extracted []extract.RecipeIngredient,
		existing []database.Ingredient, units []database.MeasurementType) ([]ingredient.Resolved, error)
}

type Attacher interface {
	Attach(ctx context.Context, recipeID int64, candidates []string) (string, error)
}

type MediaLoader interface {
	Load(ctx context.Context, keys []string, kind source.Kind) (*mediafile.File, error)
	Delete(ctx context.Context, key string) error
}

type Importer struct {
	db          DB
	gate        Gate
	webpages    WebpageFetcher
	videos      video.MetadataProvider
	transcripts transcript.Provider
	media       MediaLoader
	extractor   Extractor
	resolver    Resolver
	attacher    Attacher
	log         *slog.Logger
	// stageHook receives every stage transition; nil disables reporting.
	stageHook func(Stage)
}

type Config struct {
	DB          DB
	Gate        Gate
	Webpages    WebpageFetcher
	Videos      video.MetadataProvider
	Transcripts transcript.Provider
	Media       MediaLoader
	Extractor   Extractor
	Resolver    Resolver
	Attacher    Attacher
	Logger      *slog.Logger
	StageHook   func(Stage)
}

func New(conf Config) *Importer {
	return &Importer{
		db:          conf.DB,
		gate:        conf.Gate,
		webpages:    conf.Webpages,
		videos:      conf.Videos,
		transcripts: conf.Transcripts,
		media:       conf.Media,
		extractor:   conf.Extractor,
		resolver:    conf.Resolver,
		attacher:    conf.Attacher,
		log:         conf.Logger,
		stageHook:   conf.StageHook,
	}
}

// URLImport is one URL-sourced import request.
type URLImport struct {
	AccountID int64
	URL       string
	Language  string
	Reword    bool
	Window    transcript.Window
}

// MediaImport is one uploaded image/PDF import request.
type MediaImport struct {
	AccountID    int64
	StoragePaths []string
	Kind         source.Kind // KindImage or KindPDF
	Language     string
	Reword       bool
}

type Stats struct {
	StepsCount          int
	IngredientsCount    int
	NewIngredientsCount int
	InputTokens         int32
	OutputTokens        int32
}

type Result struct {
	RecipeID        int64
	RecipeName      string
	TokensDeducted  int
	TokensRemaining int
	Stats           Stats
}

func (im *Importer) stage(ctx context.Context, s Stage) {
	im.log.DebugContext(ctx, "import stage", slog.String("stage", string(s)))
	if im.stageHook != nil {
		im.stageHook(s)
	}
}

// ImportURL runs the full pipeline for a webpage or video URL.
func (im *Importer) ImportURL(ctx context.Context, req URLImport) (*Result, error) {
	src, err := source.Classify(req.URL)
	if err != nil {
		return nil, err
	}

	admission, err := im.admit(ctx, req.AccountID, src.Kind)
	if err != nil {
		return nil, err
	}
	// Every admitted import counts against the rate window, successful or
	// not. Gate rejections do not.
	succeeded := false
	defer func() { im.gate.RecordAttempt(ctx, req.AccountID, src.Kind, succeeded) }()

	im.stage(ctx, StageAcquiring)
	content, imageCandidates, err := im.acquire(ctx, src, req.Window)
	if err != nil {
		im.stage(ctx, StageErrored)
		return nil, err
	}

	result, err := im.extractAndCommit(ctx, commitInput{
		accountID: req.AccountID,
		src:       src,
		language:  req.Language,
		reword:    req.Reword,
		content:   content,
		admission: admission,
	})
	if err != nil {
		return nil, err
	}

	im.attachImage(ctx, result, imageCandidates)
	im.deduct(ctx, req.AccountID, admission, result)
	succeeded = true
	im.stage(ctx, StageDone)
	return result, nil
}

// ImportMedia runs the pipeline for an uploaded image or PDF.
func (im *Importer) ImportMedia(ctx context.Context, req MediaImport) (*Result, error) {
	admission, err := im.admit(ctx, req.AccountID, req.Kind)
	if err != nil {
		return nil, err
	}
	succeeded := false
	defer func() { im.gate.RecordAttempt(ctx, req.AccountID, req.Kind, succeeded) }()

	im.stage(ctx, StageAcquiring)
	file, err := im.media.Load(ctx, req.StoragePaths, req.Kind)
	if err != nil {
		im.stage(ctx, StageErrored)
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}

	in := commitInput{
		accountID: req.AccountID,
		src:       source.Source{Kind: req.Kind},
		language:  req.Language,
		reword:    req.Reword,
	}
	if file.Text != "" {
		// PDF with a usable text layer goes through the text call.
		in.content = file.Text
	} else {
		in.media = file.Data
		in.mediaMIME = file.MimeType
	}

	result, err := im.extractAndCommit(ctx, in)
	if err != nil {
		return nil, err
	}

	// The ingested bytes are the source document, not a hero image; there is
	// no candidate image step for OCR sources.
	im.deduct(ctx, req.AccountID, admission, result)
	succeeded = true

	if err := im.media.Delete(ctx, file.Key); err != nil {
		im.log.WarnContext(ctx, "deleting temporary upload", slog.String("key", file.Key), slog.Any("error", err))
	}

	im.stage(ctx, StageDone)
	return result, nil
}

func (im *Importer) admit(ctx context.Context, accountID int64, kind source.Kind) (*meter.Admission, error) {
	admission, err := im.gate.Admit(ctx, accountID, kind)
	if err != nil {
		im.stage(ctx, StageRejected)
		return nil, err
	}
	im.stage(ctx, StageRateChecked)
	im.stage(ctx, StageBalanceCheck)
	return admission, nil
}

// acquire produces the raw text for extraction plus candidate hero image
// URLs.
func (im *Importer) acquire(ctx context.Context, src source.Source, w transcript.Window) (string, []string, error) {
	switch src.Kind {
	case source.KindWebsite:
		page, err := im.webpages.Fetch(ctx, src.URL)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
		}
		content := page.HTML
		if page.RecipeJSON != "" {
			// The structured block is smaller and cleaner than full HTML.
			content = page.RecipeJSON
		}
		var candidates []string
		if page.ImageURL != "" {
			candidates = []string{page.ImageURL}
		}
		return content, candidates, nil

	case source.KindVideo:
		meta, err := im.videos.Metadata(ctx, src)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
		}
		text, err := im.transcripts.Transcript(ctx, src, w)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
		}
		content := fmt.Sprintf("Video title: %s\nVideo author: %s\nVideo description: %s\n\nTranscript:\n%s",
			meta.Title, meta.Author, meta.Description, text)
		return content, video.ThumbnailCandidates(src, meta), nil
	}

	return "", nil, fmt.Errorf("importer: source kind %q is not URL-acquired", src.Kind)
}

type commitInput struct {
	accountID int64
	src       source.Source
	language  string
	reword    bool
	content   string
	media     []byte
	mediaMIME string
	admission *meter.Admission
}

// extractAndCommit runs extraction against the joined lookup context, then
// resolves ingredients and persists the recipe. The recipe header row is the
// durability boundary; step and ingredient-line failures are logged and
// skipped per-row.
func (im *Importer) extractAndCommit(ctx context.Context, in commitInput) (*Result, error) {
	// The two read-only context fetches are independent; issue them
	// concurrently and join before extraction.
	var ingredients []database.Ingredient
	var units []database.MeasurementType
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		ingredients, err = im.db.ListIngredients(grpCtx)
		return err
	})
	grp.Go(func() error {
		var err error
		units, err = im.db.ListMeasurementTypes(grpCtx)
		return err
	})
	if err := grp.Wait(); err != nil {
		im.stage(ctx, StageErrored)
		return nil, fmt.Errorf("importer: loading extraction context: %w", err)
	}

	im.stage(ctx, StageExtracting)
	extractReq := extract.Request{
		Content:     in.content,
		Media:       in.media,
		MediaMIME:   in.mediaMIME,
		Language:    in.language,
		Reword:      in.reword,
		Ingredients: ingredients,
		Units:       units,
	}
	var recipe *extract.Recipe
	var usage extract.Usage
	var err error
	if len(in.media) > 0 {
		recipe, usage, err = im.extractor.ExtractMedia(ctx, extractReq)
	} else {
		recipe, usage, err = im.extractor.ExtractText(ctx, extractReq)
	}
	if err != nil {
		// A not-a-recipe verdict is a recognized outcome; anything else from
		// the extractor is a hard failure.
		var notRecipe *extract.NotARecipeError
		if errors.As(err, &notRecipe) {
			im.stage(ctx, StageRejected)
		} else {
			im.stage(ctx, StageErrored)
		}
		return nil, err
	}
	im.stage(ctx, StageValidated)

	resolved, err := im.resolver.Resolve(ctx, recipe.Ingredients, ingredients, units)
	if err != nil {
		im.stage(ctx, StageErrored)
		return nil, err
	}

	im.stage(ctx, StagePersisting)
	recipeID, err := im.persist(ctx, in, recipe, resolved)
	if err != nil {
		im.stage(ctx, StageErrored)
		return nil, err
	}

	newCount := 0
	for _, r := range resolved {
		if r.Created {
			newCount++
		}
	}

	return &Result{
		RecipeID:   recipeID,
		RecipeName: recipe.Name,
		Stats: Stats{
			StepsCount:          len(recipe.Steps),
			IngredientsCount:    len(resolved),
			NewIngredientsCount: newCount,
			InputTokens:         usage.InputTokens,
			OutputTokens:        usage.OutputTokens,
		},
	}, nil
}

func (im *Importer) persist(ctx context.Context, in commitInput, recipe *extract.Recipe, resolved []ingredient.Resolved) (int64, error) {
	params := database.CreateRecipeParams{
		AccountID:       in.accountID,
		Name:            recipe.Name,
		Author:          textOrNull(recipe.Author),
		Description:     textOrNull(recipe.Description),
		PrepTimeMinutes: int4OrNull(recipe.PrepTimeMinutes),
		CookTimeMinutes: int4OrNull(recipe.CookTimeMinutes),
		Yield:           textOrNull(recipe.Yield),
		Category:        textOrNull(recipe.Category),
		Cuisine:         textOrNull(recipe.Cuisine),
		Keywords:        recipe.Keywords,
		Language:        in.language,
	}
	if in.src.URL != "" {
		params.SourceURL = pgtype.Text{String: in.src.URL, Valid: true}
	}

	recipeID, err := im.db.CreateRecipe(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("importer: creating recipe: %w", err)
	}

	for i, step := range recipe.Steps {
		_, err := im.db.CreateRecipeStep(ctx, database.CreateRecipeStepParams{
			RecipeID:        recipeID,
			Position:        int32(i + 1),
			Instruction:     step.Instruction,
			DurationMinutes: int4OrNull(step.DurationMinutes),
		})
		if err != nil {
			im.log.ErrorContext(ctx, "creating recipe step",
				slog.Int64("recipe_id", recipeID), slog.Int("position", i+1), slog.Any("error", err))
		}
	}

	for i, line := range resolved {
		arg := database.CreateRecipeIngredientParams{
			RecipeID:     recipeID,
			Position:     int32(i + 1),
			IngredientID: line.IngredientID,
			Note:         textOrNull(line.Note),
		}
		if line.MeasurementTypeID != nil {
			arg.MeasurementTypeID = pgtype.Int8{Int64: *line.MeasurementTypeID, Valid: true}
		}
		if line.Quantity != nil {
			arg.Quantity = pgtype.Float8{Float64: *line.Quantity, Valid: true}
		}
		if _, err := im.db.CreateRecipeIngredient(ctx, arg); err != nil {
			im.log.ErrorContext(ctx, "creating recipe ingredient line",
				slog.Int64("recipe_id", recipeID), slog.Int("position", i+1), slog.Any("error", err))
		}
	}

	return recipeID, nil
}

// attachImage runs the media pipeline; failures never abort the import.
func (im *Importer) attachImage(ctx context.Context, result *Result, candidates []string) {
	if len(candidates) == 0 {
		return
	}
	url, err := im.attacher.Attach(ctx, result.RecipeID, candidates)
	if err != nil {
		im.log.WarnContext(ctx, "attaching recipe image",
			slog.Int64("recipe_id", result.RecipeID), slog.Any("error", err))
		return
	}
	err = im.db.UpdateRecipeImage(ctx, database.UpdateRecipeImageParams{
		ID:       result.RecipeID,
		ImageURL: pgtype.Text{String: url, Valid: true},
	})
	if err != nil {
		im.log.WarnContext(ctx, "saving recipe image url",
			slog.Int64("recipe_id", result.RecipeID), slog.Any("error", err))
		return
	}
	im.stage(ctx, StageMediaAttached)
}

// deduct debits the token cost after the recipe row exists.
func (im *Importer) deduct(ctx context.Context, accountID int64, admission *meter.Admission, result *Result) {
	remaining := im.gate.Deduct(ctx, accountID, admission.Cost, admission.Balance)
	result.TokensDeducted = admission.Cost
	result.TokensRemaining = remaining
	im.stage(ctx, StageDeducted)
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func int4OrNull(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}
