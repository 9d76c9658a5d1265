// Package ingredient maps extracted ingredient mentions onto canonical
// ingredient records, creating new records only when no match exists.
package ingredient

import (
	"context"
	"fmt"
	"strings"

	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/extract"
)

// Store is the slice of the database the resolver needs.
type Store interface {
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (int64, error)
}

// Resolved is one ingredient line after resolution.
type Resolved struct {
	IngredientID int64
	// Created is true when the resolver created a new canonical record for
	// this line.
	Created bool

	MeasurementTypeID *int64
	Quantity          *float64
	Note              *string
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps each extracted ingredient onto a canonical record, in order:
//  1. a verified existing-ingredient reference from the extractor,
//  2. a case-insensitive match on the English name,
//  3. a case-insensitive match on the target-language name,
//  4. a newly created record from the name pair.
//
// Units are matched by case-insensitive exact match on the English name;
// no match leaves the unit unset. The result is deterministic for a fixed
// input and existing-ingredient set. Records created earlier in the same
// call join the matching set, so one import never creates duplicates.
func (r *Resolver) Resolve(
	ctx context.Context,
	extracted []extract.RecipeIngredient,
	existing []database.Ingredient,
	units []database.MeasurementType,
) ([]Resolved, error) {
	byID := make(map[int64]database.Ingredient, len(existing))
	byEn := make(map[string]database.Ingredient, len(existing))
	byLocalized := make(map[string]database.Ingredient, len(existing))
	for _, ing := range existing {
		byID[ing.ID] = ing
		byEn[strings.ToLower(ing.NameEn)] = ing
		byLocalized[strings.ToLower(ing.NameDe)] = ing
	}

	unitByEn := make(map[string]int64, len(units))
	for _, u := range units {
		unitByEn[strings.ToLower(u.NameEn)] = u.ID
	}

	resolved := make([]Resolved, 0, len(extracted))
	for _, e := range extracted {
		line := Resolved{
			Quantity: e.Quantity,
			Note:     e.Note,
		}

		if e.Unit != nil {
			if id, ok := unitByEn[strings.ToLower(*e.Unit)]; ok {
				line.MeasurementTypeID = &id
			}
		}

		id, created, err := r.resolveName(ctx, e, byID, byEn, byLocalized)
		if err != nil {
			return nil, err
		}
		line.IngredientID = id
		line.Created = created

		if created {
			ing := database.Ingredient{ID: id, NameEn: e.NameEn, NameDe: e.NameLocalized}
			byID[id] = ing
			byEn[strings.ToLower(ing.NameEn)] = ing
			byLocalized[strings.ToLower(ing.NameDe)] = ing
		}

		resolved = append(resolved, line)
	}

	return resolved, nil
}

func (r *Resolver) resolveName(
	ctx context.Context,
	e extract.RecipeIngredient,
	byID map[int64]database.Ingredient,
	byEn, byLocalized map[string]database.Ingredient,
) (id int64, created bool, err error) {
	if e.IngredientID != nil && !e.IsNew {
		// Verify the extractor's reference still exists before trusting it.
		if ing, ok := byID[*e.IngredientID]; ok {
			return ing.ID, false, nil
		}
	}

	if ing, ok := byEn[strings.ToLower(e.NameEn)]; ok {
		return ing.ID, false, nil
	}
	if ing, ok := byLocalized[strings.ToLower(e.NameLocalized)]; ok {
		return ing.ID, false, nil
	}

	id, err = r.store.CreateIngredient(ctx, database.CreateIngredientParams{
		NameEn: e.NameEn,
		NameDe: e.NameLocalized,
	})
	if err != nil {
		return 0, false, fmt.Errorf("ingredient: creating %q: %w", e.NameEn, err)
	}
	return id, true, nil
}
