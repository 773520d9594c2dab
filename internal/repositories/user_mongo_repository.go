package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"usersvc/internal/models"
)

const usersCollection = "users"

var userProjection = bson.D{{Key: "_id", Value: 0}, {Key: "password", Value: 0}}

// MongoUserRepository stores users as documents with embedded orders.
type MongoUserRepository struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoUserRepository creates a repository over the users collection of dbName.
func NewMongoUserRepository(client *mongo.Client, dbName string) *MongoUserRepository {
	return &MongoUserRepository{
		client: client,
		users:  client.Database(dbName).Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique userId and username indexes.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_user_id")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetProjection(userProjection).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]models.User, 0)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		project(&u)
		users = append(users, u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *MongoUserRepository) FindByUserID(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := r.users.FindOne(ctx, byUserID(userID), options.FindOne().SetProjection(userProjection)).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	project(&u)
	return &u, nil
}

func (r *MongoUserRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	n, err := r.users.CountDocuments(ctx, byUserID(userID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	return n > 0, nil
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := *user
	if doc.Hobbies == nil {
		doc.Hobbies = []string{}
	}
	if doc.Orders == nil {
		doc.Orders = []models.Order{}
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) UpdateByUserID(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error) {
	set := bson.D{}
	if update.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *update.Username})
	}
	if update.Password != nil {
		set = append(set, bson.E{Key: "password", Value: *update.Password})
	}
	if update.FullName != nil {
		set = append(set, bson.E{Key: "fullName", Value: *update.FullName})
	}
	if update.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *update.Age})
	}
	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}
	if update.IsActive != nil {
		set = append(set, bson.E{Key: "isActive", Value: *update.IsActive})
	}
	if update.Hobbies != nil {
		hobbies := *update.Hobbies
		if hobbies == nil {
			hobbies = []string{}
		}
		set = append(set, bson.E{Key: "hobbies", Value: hobbies})
	}
	if update.Address != nil {
		set = append(set, bson.E{Key: "address", Value: *update.Address})
	}
	if len(set) == 0 {
		return r.FindByUserID(ctx, userID)
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(userProjection)

	var u models.User
	err := r.users.FindOneAndUpdate(ctx, byUserID(userID), bson.D{{Key: "$set", Value: set}}, opts).Decode(&u)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrUserConflict
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	project(&u)
	return &u, nil
}

func (r *MongoUserRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	res, err := r.users.DeleteOne(ctx, byUserID(userID))
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	var doc struct {
		Orders []models.Order `bson:"orders"`
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "orders", Value: 1}})
	if err := r.users.FindOne(ctx, byUserID(userID), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to list orders of user %d: %w", userID, err)
	}
	if doc.Orders == nil {
		return []models.Order{}, nil
	}
	return doc.Orders, nil
}

// AppendOrder uses $addToSet, so an identical order is not stored twice.
func (r *MongoUserRepository) AppendOrder(ctx context.Context, userID int64, order models.Order) error {
	res, err := r.users.UpdateOne(ctx, byUserID(userID), bson.D{{Key: "$addToSet", Value: bson.D{{Key: "orders", Value: order}}}})
	if err != nil {
		return fmt.Errorf("failed to append order to user %d: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SumOrderTotal computes the total server side with an aggregation pipeline.
func (r *MongoUserRepository) SumOrderTotal(ctx context.Context, userID int64) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: byUserID(userID)}},
		{{Key: "$unwind", Value: "$orders"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$multiply", Value: bson.A{"$orders.price", "$orders.quantity"}},
			}}}},
		}}},
	}

	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum orders of user %d: %w", userID, err)
	}
	defer cur.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode order total of user %d: %w", userID, err)
	}
	if len(results) > 0 {
		return results[0].Total, nil
	}

	// $unwind drops users without orders, so an empty result is either zero or a missing user.
	exists, err := r.ExistsByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, nil
}

func (r *MongoUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func byUserID(userID int64) bson.D {
	return bson.D{{Key: "userId", Value: userID}}
}
