// Package s3 implements the document store on Amazon S3 or S3-compatible
// storage (MinIO, Localstack, Cubbit DS3, etc.).
//
// Object Key Design:
//   - One object per document: "<prefix><collection>/<id>.json"
//   - The body is the codec envelope produced by document.Encode
//   - Collection listings are prefix scans via ListObjectsV2
//
// S3 Characteristics:
//   - Filtered queries fetch and match candidate objects client-side; a
//     filter on the id field short-circuits to a single GetObject
//   - Batch deletes use DeleteObjects (1000 objects per request)
//   - Last-write-wins on concurrent puts of the same document
//
// Thread Safety:
// The S3 client is safe for concurrent use; the store holds no other
// mutable state.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/gridstore/pkg/document"
)

// deleteBatchSize is the S3 limit on objects per DeleteObjects request.
const deleteBatchSize = 1000

// Store implements document.Store over one S3 bucket.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	newID     document.IDGenerator
}

// StoreConfig contains configuration for the S3 document store.
type StoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "gridstore/" results in keys like "gridstore/fs.files/<id>.json".
	KeyPrefix string
}

// NewStore creates a new S3-backed document store.
//
// The bucket must already exist; this function verifies access with a
// HeadBucket call but does not create it.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *Store: Initialized store
//   - error: Returns error if bucket access fails or ctx is cancelled
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		newID:     document.NewID,
	}, nil
}

// Collection returns a handle for the named collection.
func (s *Store) Collection(name string) document.Collection {
	return &collection{store: s, name: name}
}

// Close releases the store. The S3 client holds no resources that need
// explicit shutdown, so this is a no-op kept for interface symmetry.
func (s *Store) Close() error {
	return nil
}

// objectKey returns the full S3 object key for a document.
func (s *Store) objectKey(collection string, id document.ID) string {
	return s.keyPrefix + collection + "/" + id.String() + ".json"
}

// collectionPrefix returns the S3 key prefix for a collection listing.
func (s *Store) collectionPrefix(collection string) string {
	return s.keyPrefix + collection + "/"
}

// collection implements document.Collection over one key prefix.
type collection struct {
	store *Store
	name  string
}

// Insert uploads doc as one object, assigning an identifier when absent.
func (c *collection) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := doc.ID()
	if id == "" {
		id = c.store.newID()
	}

	stored := doc.Clone()
	stored[document.FieldID] = id.String()
	data, err := document.Encode(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode document for %s: %w", c.name, err)
	}

	_, err = c.store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.store.bucket),
		Key:    aws.String(c.store.objectKey(c.name, id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put document to S3: %w", err)
	}
	return id, nil
}

// Find returns every document in the collection matching filter.
func (c *collection) Find(ctx context.Context, filter document.Filter) ([]document.Document, error) {
	var out []document.Document
	err := c.scan(ctx, filter, func(doc document.Document) error {
		out = append(out, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes every document matching filter. Idempotent.
func (c *collection) Remove(ctx context.Context, filter document.Filter) error {
	var keys []types.ObjectIdentifier
	err := c.scan(ctx, filter, func(doc document.Document) error {
		keys = append(keys, types.ObjectIdentifier{
			Key: aws.String(c.store.objectKey(c.name, doc.ID())),
		})
		return nil
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		_, err := c.store.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.store.bucket),
			Delete: &types.Delete{
				Objects: keys[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete documents from %s: %w", c.name, err)
		}
	}
	return nil
}

// Count returns the number of documents matching filter.
func (c *collection) Count(ctx context.Context, filter document.Filter) (int64, error) {
	var n int64

	// An empty filter matches everything; the listing alone answers it.
	if len(filter) == 0 {
		paginator := s3.NewListObjectsV2Paginator(c.store.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.store.bucket),
			Prefix: aws.String(c.store.collectionPrefix(c.name)),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return 0, fmt.Errorf("failed to list %s: %w", c.name, err)
			}
			n += int64(len(page.Contents))
		}
		return n, nil
	}

	err := c.scan(ctx, filter, func(document.Document) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// scan fetches candidate documents and invokes fn for each match.
//
// A filter constraining the id field short-circuits to a single
// GetObject; anything else lists the collection prefix and fetches the
// objects one by one.
func (c *collection) scan(ctx context.Context, filter document.Filter, fn func(document.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rawID, ok := filter[document.FieldID]; ok {
		if idStr, ok := rawID.(string); ok {
			doc, err := c.get(ctx, document.ID(idStr))
			if err != nil {
				return err
			}
			if doc == nil || !filter.Matches(doc) {
				return nil
			}
			return fn(doc)
		}
	}

	paginator := s3.NewListObjectsV2Paginator(c.store.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.store.bucket),
		Prefix: aws.String(c.store.collectionPrefix(c.name)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", c.name, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			doc, err := c.getByKey(ctx, *obj.Key)
			if err != nil {
				return err
			}
			// The object may have been deleted between listing and
			// fetch; treat it as absent.
			if doc == nil || !filter.Matches(doc) {
				continue
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// get fetches one document by id, returning (nil, nil) when absent.
func (c *collection) get(ctx context.Context, id document.ID) (document.Document, error) {
	return c.getByKey(ctx, c.store.objectKey(c.name, id))
}

// getByKey fetches and decodes one object, returning (nil, nil) when absent.
func (c *collection) getByKey(ctx context.Context, key string) (document.Document, error) {
	result, err := c.store.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	doc, err := document.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document at %s: %w", key, err)
	}
	return doc, nil
}
