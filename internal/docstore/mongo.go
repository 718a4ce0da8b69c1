package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoConfig struct {
	URI      string
	Database string
}

// Mongo stores each collection path as a MongoDB collection, with "/"
// replaced by "." ("groups.123.chores"). Document ids live in _id. Merge
// writes use $set, so nested objects are replaced rather than merged.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := cfg.Database
	if name == "" {
		name = "chora"
	}
	return &Mongo{client: client, db: client.Database(name)}, nil
}

func (m *Mongo) coll(collection string) *mongo.Collection {
	return m.db.Collection(strings.ReplaceAll(collection, "/", "."))
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	var raw bson.M
	err := m.coll(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromBSON(raw)
}

func (m *Mongo) Set(ctx context.Context, collection, id string, data Doc, merge bool) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	body := bson.M(withoutID(data))

	var err error
	if merge {
		_, err = m.coll(collection).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": body},
			options.Update().SetUpsert(true),
		)
	} else {
		_, err = m.coll(collection).ReplaceOne(ctx,
			bson.M{"_id": id},
			body,
			options.Replace().SetUpsert(true),
		)
	}
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (m *Mongo) Create(ctx context.Context, collection, id string, data Doc) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	body := bson.M(withoutID(data))
	body["_id"] = id
	_, err := m.coll(collection).InsertOne(ctx, body)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (m *Mongo) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	filter := bson.M{}
	for _, f := range filters {
		if err := validateField(f.Field); err != nil {
			return nil, err
		}
		filter[f.Field] = f.Value
	}

	cur, err := m.coll(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	snaps := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		s, err := fromBSON(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *s)
	}
	return snaps, nil
}

func (m *Mongo) Add(ctx context.Context, collection string, data Doc) (string, error) {
	id := uuid.NewString()
	if err := m.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if _, err := m.coll(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func withoutID(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		if k != "_id" {
			out[k] = v
		}
	}
	return out
}

// fromBSON normalizes driver types (bson.M, bson.A, int32) through JSON so
// callers see the same shapes as the other backends.
func fromBSON(raw bson.M) (*Snapshot, error) {
	id, _ := raw["_id"].(string)
	delete(raw, "_id")
	var d Doc
	if err := Decode(Doc(raw), &d); err != nil {
		return nil, err
	}
	return &Snapshot{ID: id, Data: d}, nil
}
