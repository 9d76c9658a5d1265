package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Ingredient is a canonical bilingual ingredient record. Rows are created
// lazily the first time a distinct name is seen and are never deleted by the
// import pipeline.
type Ingredient struct {
	ID     int64
	NameEn string
	NameDe string
}

// MeasurementType is a canonical unit. The table is read-only to the import
// pipeline.
type MeasurementType struct {
	ID             int64
	NameEn         string
	NameDe         string
	AbbreviationEn string
	AbbreviationDe string
}

type Recipe struct {
	ID              int64
	AccountID       int64
	Name            string
	Author          pgtype.Text
	Description     pgtype.Text
	PrepTimeMinutes pgtype.Int4
	CookTimeMinutes pgtype.Int4
	Yield           pgtype.Text
	Category        pgtype.Text
	Cuisine         pgtype.Text
	Keywords        []string
	Language        string
	SourceURL       pgtype.Text
	ImageURL        pgtype.Text
	CreatedAt       time.Time
}

type RecipeStep struct {
	ID              int64
	RecipeID        int64
	Position        int32
	Instruction     string
	DurationMinutes pgtype.Int4
}

type RecipeIngredient struct {
	ID                int64
	RecipeID          int64
	Position          int32
	IngredientID      int64
	MeasurementTypeID pgtype.Int8
	Quantity          pgtype.Float8
	Note              pgtype.Text
}

// ImportAttempt is one recorded import, successful or not. The rate-limit
// window is derived from counting these rows.
type ImportAttempt struct {
	ID         int64
	AccountID  int64
	SourceKind string
	Succeeded  bool
	CreatedAt  time.Time
}
