package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/todomini/todomini-server/internal/todo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoRecord is the persisted shape. Timestamps are integer microseconds
// since the epoch; BSON datetimes only keep milliseconds.
type mongoRecord struct {
	Folder     string `bson:"folder"`
	Filename   string `bson:"filename"`
	Content    string `bson:"content"`
	CreatedAt  int64  `bson:"createdAtUs"`
	ModifiedAt int64  `bson:"modifiedAtUs"`
}

func (r *mongoRecord) document() *todo.Document {
	return &todo.Document{
		Folder:     r.Folder,
		Filename:   r.Filename,
		Content:    r.Content,
		CreatedAt:  time.UnixMicro(r.CreatedAt).UTC(),
		ModifiedAt: time.UnixMicro(r.ModifiedAt).UTC(),
	}
}

var newestFirst = bson.D{{Key: "modifiedAtUs", Value: -1}, {Key: "filename", Value: 1}}

// MongoRepo implements Store on a MongoDB collection.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo wraps col and ensures the (folder, filename) unique index and
// the (folder, modifiedAtUs) ordering index exist.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "folder", Value: 1}, {Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "folder", Value: 1}, {Key: "modifiedAtUs", Value: -1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create todo indexes: %w", err)
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Upsert(ctx context.Context, folder, filename, content string, at time.Time) error {
	us := todo.Truncate(at).UnixMicro()
	filter := bson.M{"folder": folder, "filename": filename}
	update := bson.M{
		"$set":         bson.M{"content": content, "modifiedAtUs": us},
		"$setOnInsert": bson.M{"createdAtUs": us},
	}
	if _, err := m.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", folder, filename, err)
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, folder, filename string) (bool, error) {
	res, err := m.col.DeleteOne(ctx, bson.M{"folder": folder, "filename": filename})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", folder, filename, err)
	}
	return res.DeletedCount > 0, nil
}

func (m *MongoRepo) Latest(ctx context.Context, folder string) (*todo.Document, error) {
	var rec mongoRecord
	err := m.col.FindOne(ctx, bson.M{"folder": folder}, options.FindOne().SetSort(newestFirst)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest in %s: %w", folder, err)
	}
	return rec.document(), nil
}

func (m *MongoRepo) List(ctx context.Context, folder string) ([]*todo.Document, error) {
	cur, err := m.col.Find(ctx, bson.M{"folder": folder}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	defer cur.Close(ctx)
	out := []*todo.Document{}
	for cur.Next(ctx) {
		var rec mongoRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec.document())
	}
	return out, cur.Err()
}
