package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used by the query layer. pgxpool.Pool and pgx.Tx
// both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ErrInsufficientBalance is returned by DeductTokens when the account balance
// is below the requested amount.
var ErrInsufficientBalance = errors.New("database: insufficient token balance")

const listIngredients = `
SELECT id, name_en, name_de FROM ingredients ORDER BY id
`

func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listIngredients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Ingredient
	for rows.Next() {
		var i Ingredient
		if err := rows.Scan(&i.ID, &i.NameEn, &i.NameDe); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getIngredient = `
SELECT id, name_en, name_de FROM ingredients WHERE id = $1
`

func (q *Queries) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	var i Ingredient
	err := q.db.QueryRow(ctx, getIngredient, id).Scan(&i.ID, &i.NameEn, &i.NameDe)
	return i, err
}

type CreateIngredientParams struct {
	NameEn string
	NameDe string
}

const createIngredient = `
INSERT INTO ingredients (name_en, name_de) VALUES ($1, $2) RETURNING id
`

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createIngredient, arg.NameEn, arg.NameDe).Scan(&id)
	return id, err
}

const listMeasurementTypes = `
SELECT id, name_en, name_de, abbreviation_en, abbreviation_de FROM measurement_types ORDER BY id
`

func (q *Queries) ListMeasurementTypes(ctx context.Context) ([]MeasurementType, error) {
	rows, err := q.db.Query(ctx, listMeasurementTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MeasurementType
	for rows.Next() {
		var m MeasurementType
		if err := rows.Scan(&m.ID, &m.NameEn, &m.NameDe, &m.AbbreviationEn, &m.AbbreviationDe); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type CreateRecipeParams struct {
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
}

const createRecipe = `
INSERT INTO recipes (
    account_id, name, author, description, prep_time_minutes, cook_time_minutes,
    yield, category, cuisine, keywords, language, source_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id
`

func (q *Queries) CreateRecipe(ctx context.Context, arg CreateRecipeParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createRecipe,
		arg.AccountID, arg.Name, arg.Author, arg.Description, arg.PrepTimeMinutes,
		arg.CookTimeMinutes, arg.Yield, arg.Category, arg.Cuisine, arg.Keywords,
		arg.Language, arg.SourceURL,
	).Scan(&id)
	return id, err
}

type CreateRecipeStepParams struct {
	RecipeID        int64
	Position        int32
	Instruction     string
	DurationMinutes pgtype.Int4
}

const createRecipeStep = `
INSERT INTO recipe_steps (recipe_id, position, instruction, duration_minutes)
VALUES ($1, $2, $3, $4)
RETURNING id
`

func (q *Queries) CreateRecipeStep(ctx context.Context, arg CreateRecipeStepParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createRecipeStep,
		arg.RecipeID, arg.Position, arg.Instruction, arg.DurationMinutes,
	).Scan(&id)
	return id, err
}

type CreateRecipeIngredientParams struct {
	RecipeID          int64
	Position          int32
	IngredientID      int64
	MeasurementTypeID pgtype.Int8
	Quantity          pgtype.Float8
	Note              pgtype.Text
}

const createRecipeIngredient = `
INSERT INTO recipe_ingredients (recipe_id, position, ingredient_id, measurement_type_id, quantity, note)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

func (q *Queries) CreateRecipeIngredient(ctx context.Context, arg CreateRecipeIngredientParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createRecipeIngredient,
		arg.RecipeID, arg.Position, arg.IngredientID, arg.MeasurementTypeID,
		arg.Quantity, arg.Note,
	).Scan(&id)
	return id, err
}

type UpdateRecipeImageParams struct {
	ID       int64
	ImageURL pgtype.Text
}

const updateRecipeImage = `
UPDATE recipes SET image_url = $1 WHERE id = $2
`

func (q *Queries) UpdateRecipeImage(ctx context.Context, arg UpdateRecipeImageParams) error {
	_, err := q.db.Exec(ctx, updateRecipeImage, arg.ImageURL, arg.ID)
	return err
}

const getTokenBalance = `
SELECT balance FROM token_accounts WHERE account_id = $1
`

// GetTokenBalance returns the account's token balance. Accounts without a
// row have a balance of zero.
func (q *Queries) GetTokenBalance(ctx context.Context, accountID int64) (int32, error) {
	var balance int32
	err := q.db.QueryRow(ctx, getTokenBalance, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

type DeductTokensParams struct {
	AccountID int64
	Amount    int32
}

const deductTokens = `
UPDATE token_accounts SET balance = balance - $1
WHERE account_id = $2 AND balance >= $1
`

// DeductTokens atomically debits the account, refusing to drive the balance
// negative.
func (q *Queries) DeductTokens(ctx context.Context, arg DeductTokensParams) error {
	tag, err := q.db.Exec(ctx, deductTokens, arg.Amount, arg.AccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

const countImportAttempts = `
SELECT count(*) FROM import_attempts WHERE account_id = $1 AND created_at >= $2
`

func (q *Queries) CountImportAttempts(ctx context.Context, accountID int64, since time.Time) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countImportAttempts, accountID, since).Scan(&count)
	return count, err
}

const oldestImportAttempt = `
SELECT created_at FROM import_attempts
WHERE account_id = $1 AND created_at >= $2
ORDER BY created_at ASC
LIMIT 1
`

// OldestImportAttempt returns the creation time of the oldest attempt inside
// the window, used to compute the window's reset time. pgx.ErrNoRows means
// the window is empty.
func (q *Queries) OldestImportAttempt(ctx context.Context, accountID int64, since time.Time) (time.Time, error) {
	var t time.Time
	err := q.db.QueryRow(ctx, oldestImportAttempt, accountID, since).Scan(&t)
	return t, err
}

type RecordImportAttemptParams struct {
	AccountID  int64
	SourceKind string
	Succeeded  bool
}

const recordImportAttempt = `
INSERT INTO import_attempts (account_id, source_kind, succeeded) VALUES ($1, $2, $3)
`

func (q *Queries) RecordImportAttempt(ctx context.Context, arg RecordImportAttemptParams) error {
	_, err := q.db.Exec(ctx, recordImportAttempt, arg.AccountID, arg.SourceKind, arg.Succeeded)
	return err
}
