package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BorisDmv/blog-platform/internal/models"
)

const mongoDisconnectTimeout = 5 * time.Second

// MongoStore keeps users and posts as documents in two collections. Ids are
// the application-generated UUID strings, stored in _id.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, databaseName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := client.Database(databaseName)
	store := &MongoStore{
		client: client,
		users:  database.Collection("users"),
		posts:  database.Collection("posts"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}

	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return nil, fmt.Errorf("insert user: %w", mongoConstraint(err))
	}
	return &user, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.findPosts(ctx, bson.M{})
}

func (s *MongoStore) ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	return s.findPosts(ctx, bson.M{"owner": owner})
}

func (s *MongoStore) findPosts(ctx context.Context, filter bson.M) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}

	posts := make([]models.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func (s *MongoStore) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	return s.findPost(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findPost(ctx, bson.M{"slug": slug})
}

func (s *MongoStore) findPost(ctx context.Context, filter bson.M) (*models.Post, error) {
	var post models.Post
	if err := s.posts.FindOne(ctx, filter).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

func (s *MongoStore) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return nil, fmt.Errorf("insert post: %w", mongoConstraint(err))
	}
	return &post, nil
}

func (s *MongoStore) UpdatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	update := bson.M{"$set": bson.M{
		"title":      post.Title,
		"content":    post.Content,
		"updated_at": post.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Post
	err := s.posts.FindOneAndUpdate(ctx, bson.M{"_id": post.ID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &updated, nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) (bool, error) {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func mongoConstraint(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(models.ErrDuplicate, err)
	}
	return err
}
