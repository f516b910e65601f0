package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkshare/pkg/storage"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Storage{client: client, dbName: conf.DBName}
	for _, name := range []string{usersCollection, postsCollection} {
		if err := s.createCollection(ctx, name); err != nil {
			return nil, err
		}
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

func (s *Storage) users() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(usersCollection)
}

func (s *Storage) posts() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(postsCollection)
}

// CreateUser inserts a new user. The email is stored normalized and must be
// unique; a duplicate yields storage.ErrEmailTaken.
func (s *Storage) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	u, err := storage.NewUser(u)
	if err != nil {
		return storage.User{}, err
	}
	u.Email = storage.NormalizeEmail(u.Email)

	cnt, err := s.users().CountDocuments(ctx, bson.M{"email": u.Email})
	if err != nil {
		return storage.User{}, err
	}
	if cnt > 0 {
		return storage.User{}, storage.ErrEmailTaken
	}

	_, err = s.users().InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return storage.User{}, storage.ErrEmailTaken
	}
	if err != nil {
		return storage.User{}, err
	}

	return u, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (storage.User, error) {
	var u storage.User
	err := s.users().FindOne(ctx, bson.M{"email": storage.NormalizeEmail(email)}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return storage.User{}, err
	}

	return u, nil
}

func (s *Storage) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	opts := options.Find().SetProjection(bson.M{"username": 1})
	cur, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}

	var found []struct {
		ID       uuid.UUID `bson:"_id"`
		Username string    `bson:"username"`
	}
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(found))
	for _, u := range found {
		names[u.ID] = u.Username
	}
	return names, nil
}

func (s *Storage) CreatePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	p, err := storage.NewPost(p)
	if err != nil {
		return storage.Post{}, err
	}

	if _, err := s.posts().InsertOne(ctx, p); err != nil {
		return storage.Post{}, err
	}

	return p, nil
}

func (s *Storage) Post(ctx context.Context, id uuid.UUID) (storage.Post, error) {
	var p storage.Post
	err := s.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.Post{}, storage.ErrPostNotFound
	}
	if err != nil {
		return storage.Post{}, err
	}

	return fillEmpty(p), nil
}

// Posts returns the posts matching f sorted by creation time descending.
func (s *Storage) Posts(ctx context.Context, f storage.PostFilter) ([]storage.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := s.posts().Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, err
	}

	var posts []storage.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}

	for i := range posts {
		posts[i] = fillEmpty(posts[i])
	}
	return posts, nil
}

// SavePost writes the votes and comments of p if nobody saved the post since
// it was read, i.e. the stored version still equals p.Version.
func (s *Storage) SavePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	p = fillEmpty(p)

	res, err := s.posts().UpdateOne(ctx,
		bson.M{"_id": p.ID, "version": p.Version},
		bson.M{
			"$set": bson.M{
				"likes":    p.Likes,
				"dislikes": p.Dislikes,
				"comments": p.Comments,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return storage.Post{}, err
	}

	if res.MatchedCount == 0 {
		cnt, err := s.posts().CountDocuments(ctx, bson.M{"_id": p.ID})
		if err != nil {
			return storage.Post{}, err
		}
		if cnt == 0 {
			return storage.Post{}, storage.ErrPostNotFound
		}
		return storage.Post{}, storage.ErrPostConflict
	}

	p.Version++
	return p, nil
}

// buildFilter translates f into a query document. The title text is escaped
// so that it is matched literally.
func buildFilter(f storage.PostFilter) bson.M {
	filter := bson.M{}
	if f.TitleContains != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.TitleContains), Options: "i"}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	return filter
}

// fillEmpty replaces nil collections decoded from null or missing fields.
func fillEmpty(p storage.Post) storage.Post {
	if p.Likes == nil {
		p.Likes = []uuid.UUID{}
	}
	if p.Dislikes == nil {
		p.Dislikes = []uuid.UUID{}
	}
	if p.Comments == nil {
		p.Comments = []storage.Comment{}
	}
	return p
}

// ensureIndexes creates the unique email index and the index backing the
// dashboard sort.
func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = s.posts().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_desc")},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("category_created_at")},
	})
	if err != nil {
		return fmt.Errorf("failed to create posts indexes: %w", err)
	}

	return nil
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, collName string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), collName)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.client.Database(s.dbName).CreateCollection(ctx, collName)
		if err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, collName string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	for _, name := range names {
		if name == collName {
			return true, nil
		}
	}

	return false, nil
}
