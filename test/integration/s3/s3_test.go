//go:build integration

package s3_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/gridstore/pkg/document"
	documentS3 "github.com/marmos91/gridstore/pkg/document/s3"
	documenttesting "github.com/marmos91/gridstore/pkg/document/testing"
	"github.com/marmos91/gridstore/pkg/grid"
	"github.com/marmos91/gridstore/pkg/session"
)

// setupTestS3 creates an S3 client and a test bucket against a
// Localstack (or other S3-compatible) endpoint.
//
// The endpoint comes from LOCALSTACK_ENDPOINT, defaulting to
// http://localhost:4566. When the endpoint is unreachable the calling
// test is skipped, so -tags=integration stays usable without S3.
//
// Returns the client and a cleanup function that deletes every object
// and the bucket itself.
func setupTestS3(t *testing.T, bucketName string) (*s3.Client, func()) {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "",
		)),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		t.Skipf("S3 endpoint %s unreachable, skipping: %v", endpoint, err)
	}

	cleanup := func() {
		// Delete all objects, then the bucket.
		var continuation *string
		for {
			list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(bucketName),
				ContinuationToken: continuation,
			})
			if err != nil {
				t.Logf("Failed to list objects during cleanup: %v", err)
				return
			}

			if len(list.Contents) > 0 {
				objects := make([]s3types.ObjectIdentifier, 0, len(list.Contents))
				for _, obj := range list.Contents {
					objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
				}
				_, err = client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
					Bucket: aws.String(bucketName),
					Delete: &s3types.Delete{Objects: objects},
				})
				if err != nil {
					t.Logf("Failed to delete objects during cleanup: %v", err)
				}
			}

			if list.IsTruncated == nil || !*list.IsTruncated {
				break
			}
			continuation = list.NextContinuationToken
		}

		if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err != nil {
			t.Logf("Failed to delete bucket during cleanup: %v", err)
		}
	}

	return client, cleanup
}

// TestS3DocumentStore_Integration runs the shared document store
// conformance suite against a real S3 endpoint.
//
// Prerequisites:
//   - Localstack running (or LOCALSTACK_ENDPOINT pointing elsewhere)
//   - Run with: go test -tags=integration ./test/integration/s3/...
func TestS3DocumentStore_Integration(t *testing.T) {
	bucket := "gridstore-it-" + uuid.NewString()
	client, cleanup := setupTestS3(t, bucket)
	t.Cleanup(cleanup)

	suite := documenttesting.StoreTestSuite{
		NewStore: func() document.Store {
			// A fresh key prefix per store keeps suite sections from
			// seeing each other's documents in the shared bucket.
			store, err := documentS3.NewStore(context.Background(), documentS3.StoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: "suite-" + uuid.NewString() + "/",
			})
			if err != nil {
				t.Fatalf("Failed to create S3 document store: %v", err)
			}
			return store
		},
	}
	suite.Run(t)
}

// TestS3Grid_Integration pushes chunked files through the grid engine
// over an S3-backed document store.
func TestS3Grid_Integration(t *testing.T) {
	ctx := context.Background()
	bucket := "gridstore-it-" + uuid.NewString()
	client, cleanup := setupTestS3(t, bucket)
	t.Cleanup(cleanup)

	store, err := documentS3.NewStore(ctx, documentS3.StoreConfig{
		Client: client,
		Bucket: bucket,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 document store: %v", err)
	}

	sess, err := session.New(ctx, store, session.Config{PoolSize: 8})
	if err != nil {
		_ = store.Close()
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	fs := sess.Grid("fs")

	payload := make([]byte, 64_000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	err = fs.With(ctx, "remote.bin", "w", func(f *grid.File) error {
		if err := f.SetChunkSize(16 * 1024); err != nil {
			return err
		}
		_, err := f.Write(ctx, payload)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	data, err := fs.ReadAll(ctx, "remote.bin")
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("payload mismatch through S3 store")
	}

	middle, err := fs.ReadRange(ctx, "remote.bin", 30_000, 100)
	if err != nil {
		t.Fatalf("Failed to range read: %v", err)
	}
	if !bytes.Equal(middle, payload[30_000:30_100]) {
		t.Fatal("range read mismatch through S3 store")
	}

	if err := fs.Unlink(ctx, "remote.bin"); err != nil {
		t.Fatalf("Failed to unlink: %v", err)
	}
	ok, err := fs.Exists(ctx, "remote.bin")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if ok {
		t.Fatal("file still exists after unlink")
	}
}
