package repository

import (
	"context"
	_ "embed"
	"fmt"

	"household-inventory-api/internal/model"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var seedCatalog []byte

// RecipeSeeder writes recipe catalog entries.
type RecipeSeeder interface {
	SaveRecipe(ctx context.Context, r model.Recipe) error
}

// Seeder writes catalog and member data. Stores that own the catalog implement it.
type Seeder interface {
	RecipeSeeder
	SaveMember(ctx context.Context, id string) error
	SaveFood(ctx context.Context, f model.Food) error
}

type seedFile struct {
	Members []string     `yaml:"members"`
	Foods   []seedFood   `yaml:"foods"`
	Recipes []seedRecipe `yaml:"recipes"`
}

type seedFood struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	DefaultUnit string  `yaml:"default_unit"`
	Calories    float64 `yaml:"calories"`
	Protein     float64 `yaml:"protein"`
	Fat         float64 `yaml:"fat"`
	Carbs       float64 `yaml:"carbs"`
}

type seedRecipe struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Servings    int              `yaml:"servings"`
	Ingredients []seedIngredient `yaml:"ingredients"`
}

type seedIngredient struct {
	FoodID   string  `yaml:"food_id"`
	Name     string  `yaml:"name"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
	Optional bool    `yaml:"optional"`
}

// SeedCatalog is the parsed starter catalog.
type SeedCatalog struct {
	Members []string
	Foods   []model.Food
	Recipes []model.Recipe
}

// LoadSeedCatalog parses a catalog document.
func LoadSeedCatalog(data []byte) (*SeedCatalog, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}

	cat := &SeedCatalog{Members: file.Members}
	for _, f := range file.Foods {
		cat.Foods = append(cat.Foods, model.Food{
			ID: f.ID, Name: f.Name, Category: f.Category, DefaultUnit: f.DefaultUnit,
			Calories: f.Calories, Protein: f.Protein, Fat: f.Fat, Carbs: f.Carbs,
		})
	}
	for _, r := range file.Recipes {
		recipe := model.Recipe{ID: r.ID, Name: r.Name, Servings: r.Servings}
		for _, ing := range r.Ingredients {
			recipe.Ingredients = append(recipe.Ingredients, model.Ingredient{
				RecipeID: r.ID, FoodID: ing.FoodID, Name: ing.Name,
				Quantity: ing.Quantity, Unit: ing.Unit, Optional: ing.Optional,
			})
		}
		cat.Recipes = append(cat.Recipes, recipe)
	}
	return cat, nil
}

// DefaultSeedCatalog returns the embedded starter catalog.
func DefaultSeedCatalog() (*SeedCatalog, error) {
	return LoadSeedCatalog(seedCatalog)
}

// Seed writes members and foods to store, and recipes to recipes.
// recipes may be the same store or a separate recipe backend.
func Seed(ctx context.Context, cat *SeedCatalog, store Seeder, recipes RecipeSeeder, logger *zap.Logger) error {
	for _, id := range cat.Members {
		if err := store.SaveMember(ctx, id); err != nil {
			return fmt.Errorf("seed member %s: %w", id, err)
		}
	}
	for _, f := range cat.Foods {
		if err := store.SaveFood(ctx, f); err != nil {
			return fmt.Errorf("seed food %s: %w", f.ID, err)
		}
	}
	for _, r := range cat.Recipes {
		if err := recipes.SaveRecipe(ctx, r); err != nil {
			return fmt.Errorf("seed recipe %s: %w", r.ID, err)
		}
	}

	logger.Info("catalog seeded",
		zap.Int("members", len(cat.Members)),
		zap.Int("foods", len(cat.Foods)),
		zap.Int("recipes", len(cat.Recipes)))
	return nil
}
