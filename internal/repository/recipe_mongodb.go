package repository

import (
	"context"
	"fmt"
	"time"

	"household-inventory-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoRecipeStore implements RecipeCatalog and CookHistoryRepository using MongoDB.
// Recipes are stored as one document each with embedded ingredients.
type MongoRecipeStore struct {
	client  *mongo.Client
	db      *mongo.Database
	recipes *mongo.Collection
	cooks   *mongo.Collection
	logger  *zap.Logger
}

// NewMongoRecipeStore connects and ensures indexes.
func NewMongoRecipeStore(uri, database string, logger *zap.Logger) (*MongoRecipeStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	store := &MongoRecipeStore{
		client:  client,
		db:      db,
		recipes: db.Collection("recipes"),
		cooks:   db.Collection("cook_history"),
		logger:  logger,
	}

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{store.recipes, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}}},
		{store.cooks, mongo.IndexModel{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "cooked_at", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			logger.Warn("failed to create mongo index", zap.String("collection", idx.coll.Name()), zap.Error(err))
		}
	}

	logger.Info("mongo recipe store connected", zap.String("database", database))
	return store, nil
}

// GetRecipe returns a recipe by ID.
func (r *MongoRecipeStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.recipes.FindOne(ctx, bson.M{"_id": id}).Decode(&recipe)
	if err == mongo.ErrNoDocuments {
		return nil, model.NotFound("recipe", id)
	}
	if err != nil {
		return nil, model.Dependency("get recipe", err)
	}
	return &recipe, nil
}

// ListRecipes returns every recipe sorted by name.
func (r *MongoRecipeStore) ListRecipes(ctx context.Context) ([]model.Recipe, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.recipes.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, model.Dependency("list recipes", err)
	}
	defer cursor.Close(ctx)

	var recipes []model.Recipe
	if err := cursor.All(ctx, &recipes); err != nil {
		return nil, model.Dependency("list recipes", err)
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	return recipes, nil
}

// SaveRecipe upserts a recipe document.
func (r *MongoRecipeStore) SaveRecipe(ctx context.Context, recipe model.Recipe) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.recipes.ReplaceOne(ctx, bson.M{"_id": recipe.ID}, recipe, opts); err != nil {
		return model.Dependency("save recipe", err)
	}
	return nil
}

// RecordCook inserts a cook record with its usages embedded.
func (r *MongoRecipeStore) RecordCook(ctx context.Context, record *model.CookRecord) error {
	if _, err := r.cooks.InsertOne(ctx, record); err != nil {
		return model.Dependency("record cook", err)
	}
	return nil
}

// ListCooks returns a member's cook records, newest first.
func (r *MongoRecipeStore) ListCooks(ctx context.Context, memberID string, limit int) ([]model.CookRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "cooked_at", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.cooks.Find(ctx, bson.M{"member_id": memberID}, findOptions)
	if err != nil {
		return nil, model.Dependency("list cooks", err)
	}
	defer cursor.Close(ctx)

	var records []model.CookRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, model.Dependency("list cooks", err)
	}
	if records == nil {
		records = []model.CookRecord{}
	}
	return records, nil
}

// GetStats returns collection counts.
func (r *MongoRecipeStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"status": "connected"}

	recipes, err := r.recipes.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["recipes"] = recipes

	cooks, err := r.cooks.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["cook_records"] = cooks
	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoRecipeStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var (
	_ RecipeCatalog         = (*MongoRecipeStore)(nil)
	_ CookHistoryRepository = (*MongoRecipeStore)(nil)
)
