package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreConfig struct {
	ProjectID string
	// CredentialsJSON is a service account key. Empty uses application
	// default credentials.
	CredentialsJSON string
}

// Firestore stores documents in Cloud Firestore. Collection paths map 1:1
// onto Firestore paths, so "groups/{gid}/chores" is a subcollection.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &Snapshot{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (f *Firestore) Set(ctx context.Context, collection, id string, data Doc, merge bool) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := f.client.Collection(collection).Doc(id).Set(ctx, map[string]any(data), opts...); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (f *Firestore) Create(ctx context.Context, collection, id string, data Doc) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := f.client.Collection(collection).Doc(id).Create(ctx, map[string]any(data))
	if status.Code(err) == codes.AlreadyExists {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	q := f.client.Collection(collection).Query
	for _, flt := range filters {
		if err := validateField(flt.Field); err != nil {
			return nil, err
		}
		q = q.Where(flt.Field, "==", flt.Value)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var snaps []Snapshot
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		snaps = append(snaps, Snapshot{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return snaps, nil
}

func (f *Firestore) Add(ctx context.Context, collection string, data Doc) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := f.client.Collection(collection).Add(ctx, map[string]any(data))
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return ref.ID, nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
