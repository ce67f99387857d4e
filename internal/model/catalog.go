package model

import "time"

// Food is a read-only food catalog entry.
type Food struct {
	ID          string  `json:"id" db:"id" bson:"_id"`
	Name        string  `json:"name" db:"name" bson:"name"`
	Category    string  `json:"category" db:"category" bson:"category"`
	DefaultUnit string  `json:"default_unit" db:"default_unit" bson:"default_unit"`
	Calories    float64 `json:"calories" db:"calories" bson:"calories"`
	Protein     float64 `json:"protein" db:"protein" bson:"protein"`
	Fat         float64 `json:"fat" db:"fat" bson:"fat"`
	Carbs       float64 `json:"carbs" db:"carbs" bson:"carbs"`
}

// Recipe is a read-only recipe catalog entry. Ingredient quantities are per serving.
type Recipe struct {
	ID          string       `json:"id" db:"id" bson:"_id"`
	Name        string       `json:"name" db:"name" bson:"name"`
	Servings    int          `json:"servings" db:"servings" bson:"servings"`
	Ingredients []Ingredient `json:"ingredients" db:"-" bson:"ingredients"`
}

// Ingredient is one requirement of a recipe.
type Ingredient struct {
	RecipeID string  `json:"-" db:"recipe_id" bson:"-"`
	FoodID   string  `json:"food_id" db:"food_id" bson:"food_id"`
	Name     string  `json:"name" db:"name" bson:"name"`
	Quantity float64 `json:"quantity" db:"quantity" bson:"quantity"`
	Unit     string  `json:"unit" db:"unit" bson:"unit"`
	Optional bool    `json:"optional" db:"optional" bson:"optional"`
}

// CookRecord is the history entry appended when a recipe is cooked.
type CookRecord struct {
	ID         string       `json:"id" db:"id" bson:"_id"`
	MemberID   string       `json:"member_id" db:"member_id" bson:"member_id"`
	RecipeID   string       `json:"recipe_id" db:"recipe_id" bson:"recipe_id"`
	RecipeName string       `json:"recipe_name" db:"recipe_name" bson:"recipe_name"`
	Servings   int          `json:"servings" db:"servings" bson:"servings"`
	Usages     []UsageEvent `json:"usages,omitempty" db:"-" bson:"usages"`
	CookedAt   time.Time    `json:"cooked_at" db:"cooked_at" bson:"cooked_at"`
}
