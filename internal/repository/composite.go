package repository

import (
	"context"
	"errors"

	"household-inventory-api/internal/model"
)

// RecipeBackend is a recipe catalog that also keeps cook history.
type RecipeBackend interface {
	RecipeCatalog
	CookHistoryRepository
	Close() error
}

// MemberBackend is a member directory with its own connection.
type MemberBackend interface {
	MemberDirectory
	Close() error
}

// CompositeStore routes recipe and member queries to dedicated backends
// and everything else to the primary store.
type CompositeStore struct {
	Store
	recipes RecipeBackend
	members MemberBackend
}

// NewCompositeStore wraps primary. Nil backends fall through to primary.
func NewCompositeStore(primary Store, recipes RecipeBackend, members MemberBackend) *CompositeStore {
	return &CompositeStore{Store: primary, recipes: recipes, members: members}
}

func (c *CompositeStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	if c.recipes != nil {
		return c.recipes.GetRecipe(ctx, id)
	}
	return c.Store.GetRecipe(ctx, id)
}

func (c *CompositeStore) ListRecipes(ctx context.Context) ([]model.Recipe, error) {
	if c.recipes != nil {
		return c.recipes.ListRecipes(ctx)
	}
	return c.Store.ListRecipes(ctx)
}

func (c *CompositeStore) RecordCook(ctx context.Context, record *model.CookRecord) error {
	if c.recipes != nil {
		return c.recipes.RecordCook(ctx, record)
	}
	return c.Store.RecordCook(ctx, record)
}

func (c *CompositeStore) ListCooks(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error) {
	if c.recipes != nil {
		return c.recipes.ListCooks(ctx, memberID, limit)
	}
	return c.Store.ListCooks(ctx, memberID, limit)
}

func (c *CompositeStore) MemberExists(ctx context.Context, memberID string) (bool, error) {
	if c.members != nil {
		return c.members.MemberExists(ctx, memberID)
	}
	return c.Store.MemberExists(ctx, memberID)
}

// Close closes every backend and returns the joined errors.
func (c *CompositeStore) Close() error {
	var errs []error
	if c.recipes != nil {
		errs = append(errs, c.recipes.Close())
	}
	if c.members != nil {
		errs = append(errs, c.members.Close())
	}
	errs = append(errs, c.Store.Close())
	return errors.Join(errs...)
}

// Ensure CompositeStore implements Store
var _ Store = (*CompositeStore)(nil)
