// Package setup is responsible for setting up components.
package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/snapdish/snapdish/internal/config"
	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/extract"
	snaphttp "github.com/snapdish/snapdish/internal/http"
	"github.com/snapdish/snapdish/internal/imageattach"
	"github.com/snapdish/snapdish/internal/importer"
	"github.com/snapdish/snapdish/internal/ingredient"
	"github.com/snapdish/snapdish/internal/mediafile"
	"github.com/snapdish/snapdish/internal/meter"
	"github.com/snapdish/snapdish/internal/objectstore"
	"github.com/snapdish/snapdish/internal/transcript"
	"github.com/snapdish/snapdish/internal/video"
	"github.com/snapdish/snapdish/internal/webpage"
)

// Database connects the Postgres pool and ensures the schema is applied.
func Database(ctx context.Context, conf *config.Config) (*database.Database, error) {
	pool, err := pgxpool.New(ctx, conf.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := database.NewDatabase(pool)
	if err := database.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// ObjectStore connects to blob storage and ensures both buckets exist.
func ObjectStore(conf *config.Config) (*objectstore.MinioStore, error) {
	return objectstore.NewMinioStore(
		conf.ObjectStore.Endpoint,
		conf.ObjectStore.AccessKey,
		conf.ObjectStore.SecretKey,
		conf.ObjectStore.UseSSL,
		conf.ObjectStore.Bucket,
		conf.ObjectStore.UploadsBucket,
	)
}

// Importer wires the full import pipeline.
func Importer(ctx context.Context, conf *config.Config, db *database.Database,
	store *objectstore.MinioStore, logger *slog.Logger) (*importer.Importer, *meter.Gate, error) {

	genAI, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  conf.Extraction.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating extraction client: %w", err)
	}

	fetchClient := snaphttp.New(snaphttp.PipelineConfig(config.FetchTimeout))

	var transcripts transcript.Provider = transcript.NewCaptionProvider(
		snaphttp.New(snaphttp.PipelineConfig(config.ExtractTimeout)), conf.Transcripts.BaseURL)
	if conf.Transcripts.SpeechToTextURL != "" {
		transcripts = transcript.NewChain(transcripts,
			transcript.NewSpeechToTextProvider(
				snaphttp.New(snaphttp.PipelineConfig(config.ExtractTimeout)),
				conf.Transcripts.SpeechToTextURL))
	}

	gate := meter.NewGate(db, logger)

	imp := importer.New(importer.Config{
		DB:          db,
		Gate:        gate,
		Webpages:    webpage.NewFetcher(fetchClient),
		Videos:      video.NewOEmbedProvider(fetchClient),
		Transcripts: transcripts,
		Media:       mediafile.NewLoader(store, conf.ObjectStore.UploadsBucket),
		Extractor:   extract.New(genAI.Models, conf.Extraction.Model, conf.Extraction.VisionModel),
		Resolver:    ingredient.NewResolver(db),
		Attacher: imageattach.New(fetchClient, store,
			conf.ObjectStore.Bucket, conf.ObjectStore.PublicBaseURL, logger),
		Logger: logger,
	})

	return imp, gate, nil
}
