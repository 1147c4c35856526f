// Package mongostore persists summaries and details in MongoDB. Unique
// indexes on url / id / post_id / post_collection_id back the coordinator's
// duplicate handling.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/store"
)

const (
	PostsCollection   = "posts"
	DetailsCollection = "postsDetails"

	maxPageLimit = 15
)

type Stores struct {
	DB      *mongo.Database
	Posts   *mongo.Collection
	Details *mongo.Collection
}

var _ store.Store = (*Stores)(nil)

// Connect dials uri, pings the server and ensures indexes on dbname.
func Connect(ctx context.Context, uri, dbname string, cred *options.Credential) (*Stores, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if cred != nil {
		clientOpts.SetAuth(*cred)
	}
	cli, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err = cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(cli.Database(dbname))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Stores {
	return &Stores{
		DB:      db,
		Posts:   db.Collection(PostsCollection),
		Details: db.Collection(DetailsCollection),
	}
}

// EnsureIndexes creates the unique keys both collections rely on.
func (s *Stores) EnsureIndexes(ctx context.Context) error {
	// id is sparse so legacy rows without one can still be backfilled.
	_, err := s.Posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create posts indexes: %w", err)
	}
	_, err = s.Details.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post_collection_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "post_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "url", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create postsDetails indexes: %w", err)
	}
	return nil
}

func (s *Stores) Close(ctx context.Context) error {
	return s.DB.Client().Disconnect(ctx)
}

func (s *Stores) FindSummary(ctx context.Context, q store.SummaryQuery) (model.Summary, error) {
	if q.Empty() {
		return model.Summary{}, store.ErrNotFound
	}
	filter := bson.D{}
	if q.ID != "" {
		filter = append(filter, bson.E{Key: "id", Value: q.ID})
	}
	if q.Title != "" {
		filter = append(filter, bson.E{Key: "title", Value: q.Title})
	}
	if q.URL != "" {
		filter = append(filter, bson.E{Key: "url", Value: q.URL})
	}
	var out model.Summary
	if err := s.Posts.FindOne(ctx, filter).Decode(&out); err != nil {
		return model.Summary{}, translate(err)
	}
	return out, nil
}

func (s *Stores) InsertSummary(ctx context.Context, sum model.Summary) (model.Summary, error) {
	sum.Key = ""
	res, err := s.Posts.InsertOne(ctx, sum)
	if err != nil {
		return model.Summary{}, translate(err)
	}
	sum.Key = keyString(res.InsertedID)
	return sum, nil
}

func (s *Stores) ListSummaries(ctx context.Context, page, limit int) ([]model.Summary, int64, error) {
	skip, lim := store.Page(page, limit, maxPageLimit)
	total, err := s.Posts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(lim))
	cur, err := s.Posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find posts: %w", err)
	}
	out := []model.Summary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode posts: %w", err)
	}
	return out, total, nil
}

func (s *Stores) SummaryRefs(ctx context.Context) ([]model.SummaryRef, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "id", Value: 1}, {Key: "url", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.Posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find post refs: %w", err)
	}
	var out []model.SummaryRef
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode post refs: %w", err)
	}
	return out, nil
}

func (s *Stores) SummariesMissingID(ctx context.Context) ([]model.Summary, error) {
	cur, err := s.Posts.Find(ctx, bson.D{{Key: "id", Value: bson.D{{Key: "$exists", Value: false}}}})
	if err != nil {
		return nil, fmt.Errorf("find posts without id: %w", err)
	}
	var out []model.Summary
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode posts without id: %w", err)
	}
	return out, nil
}

func (s *Stores) SetSummaryID(ctx context.Context, key, id string) error {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return fmt.Errorf("parse post key %q: %w", key, err)
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "id", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	res, err := s.Posts.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "id", Value: id}}}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Stores) FindDetailByURL(ctx context.Context, url string) (model.Detail, error) {
	return s.findDetail(ctx, bson.D{{Key: "url", Value: url}})
}

func (s *Stores) FindDetailByCollectionID(ctx context.Context, postCollectionID string) (model.Detail, error) {
	return s.findDetail(ctx, bson.D{{Key: "post_collection_id", Value: postCollectionID}})
}

func (s *Stores) FindDetailByPostID(ctx context.Context, postID string) (model.Detail, error) {
	return s.findDetail(ctx, bson.D{{Key: "post_id", Value: postID}})
}

func (s *Stores) findDetail(ctx context.Context, filter bson.D) (model.Detail, error) {
	var out model.Detail
	if err := s.Details.FindOne(ctx, filter).Decode(&out); err != nil {
		return model.Detail{}, translate(err)
	}
	return out, nil
}

func (s *Stores) InsertDetail(ctx context.Context, d model.Detail) (model.Detail, error) {
	d.Key = ""
	res, err := s.Details.InsertOne(ctx, d)
	if err != nil {
		return model.Detail{}, translate(err)
	}
	d.Key = keyString(res.InsertedID)
	return d, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return err
	}
}

func keyString(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
