package imagestore

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps pictures in a MongoDB GridFS bucket under "<dir>/<name>"
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

func NewGridFSStore(ctx context.Context, uri, database, bucketName string) (*GridFSStore, error) {
	clientOptions := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot open GridFS bucket: %w", err)
	}

	return &GridFSStore{client: client, bucket: bucket}, nil
}

func (s *GridFSStore) Save(ctx context.Context, r io.Reader, dir, name string) (string, error) {
	if err := checkName(dir); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetWriteDeadline(deadline); err != nil {
			return "", fmt.Errorf("cannot set write deadline: %w", err)
		}
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "dir", Value: dir}})
	id, err := s.bucket.UploadFromStream(dir+"/"+name, &ctxReader{ctx: ctx, r: r}, opts)
	if err != nil {
		return "", fmt.Errorf("cannot upload image: %w", err)
	}
	return id.Hex(), nil
}

func (s *GridFSStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	return nil
}
