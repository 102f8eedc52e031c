package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/gridstore/internal/logger"
	"github.com/marmos91/gridstore/pkg/document"
	documentBadger "github.com/marmos91/gridstore/pkg/document/badger"
	documentMemory "github.com/marmos91/gridstore/pkg/document/memory"
	documentS3 "github.com/marmos91/gridstore/pkg/document/s3"
	"github.com/marmos91/gridstore/pkg/gc"
	"github.com/marmos91/gridstore/pkg/session"
	"github.com/mitchellh/mapstructure"
)

// CreateDocumentStore creates a document store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/document/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/document/badger (BadgerDB storage, persistent)
//   - "s3": Uses pkg/document/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Document store configuration
//
// Returns:
//   - document.Store: Initialized document store
//   - error: Configuration or initialization error
func CreateDocumentStore(ctx context.Context, cfg *StoreConfig) (document.Store, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryDocumentStore(ctx, cfg.Memory)
	case "badger":
		return createBadgerDocumentStore(ctx, cfg.Badger)
	case "s3":
		return createS3DocumentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown document store type: %q (supported: memory, badger, s3)", cfg.Type)
	}
}

// createMemoryDocumentStore creates an in-memory document store.
func createMemoryDocumentStore(ctx context.Context, options map[string]any) (document.Store, error) {
	// The memory store takes no options today; reject unknown keys so a
	// typo in the config file does not silently configure nothing.
	if len(options) > 0 {
		for key := range options {
			return nil, fmt.Errorf("memory document store: unknown option %q", key)
		}
	}

	store, err := documentMemory.NewStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory document store: %w", err)
	}

	return store, nil
}

// createBadgerDocumentStore creates a BadgerDB-based persistent document store.
func createBadgerDocumentStore(ctx context.Context, options map[string]any) (document.Store, error) {
	// Decode store-specific options
	type BadgerDocumentStoreOptions struct {
		DBPath           string `mapstructure:"db_path"`
		BlockCacheSizeMB int64  `mapstructure:"block_cache_mb"`
		IndexCacheSizeMB int64  `mapstructure:"index_cache_mb"`
	}

	var storeOpts BadgerDocumentStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger document store options: %w", err)
	}

	// Validate required fields
	if storeOpts.DBPath == "" {
		return nil, fmt.Errorf("badger document store: db_path is required")
	}

	store, err := documentBadger.NewStore(ctx, documentBadger.StoreConfig{
		DBPath:           storeOpts.DBPath,
		BlockCacheSizeMB: storeOpts.BlockCacheSizeMB,
		IndexCacheSizeMB: storeOpts.IndexCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger document store: %w", err)
	}

	return store, nil
}

// createS3DocumentStore creates an S3-based document store.
func createS3DocumentStore(ctx context.Context, options map[string]any) (document.Store, error) {
	// Define the configuration struct for the S3 document store
	type S3DocumentStoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	// Decode the options into the config struct
	var storeCfg S3DocumentStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 document store config: %w", err)
	}

	// Validate required fields
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 document store: bucket is required")
	}

	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 document store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	// Set region
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Set custom endpoint if provided (for MinIO, Localstack, etc.)
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Configure retries for better resilience against temporary S3 failures
	// Default to 10 retries if not specified (increased from AWS default of 3)
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10 // Default: 10 attempts
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries // Retry for transient errors (502, 503, timeouts, etc.)
		})
	}))

	// Load AWS config
	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Force path-style addressing for compatibility with MinIO/Localstack
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Document Store
	// ========================================================================

	store, err := documentS3.NewStore(ctx, documentS3.StoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 document store: %w", err)
	}

	logger.Info("S3 document store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// CreateSession creates a session over the configured document store.
//
// This function:
//  1. Creates the document store from cfg.Store
//  2. Maps session and grid settings into a session configuration
//  3. Opens the session, which takes ownership of the store
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Complete configuration
//   - m: Metrics sinks from InitializeMetrics (nil = disabled)
//
// Returns:
//   - *session.Session: Ready session; Close releases the store
//   - error: Store creation or session configuration error
func CreateSession(ctx context.Context, cfg *Config, m *MetricsResult) (*session.Session, error) {
	store, err := CreateDocumentStore(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	sessionCfg := session.Config{
		Nodes:        cfg.Session.Nodes,
		PoolSize:     cfg.Session.PoolSize,
		OpsPerSecond: cfg.Session.OpsPerSecond,
		Burst:        cfg.Session.Burst,
	}
	if m != nil {
		sessionCfg.Metrics = m.GridMetrics
		sessionCfg.StoreMetrics = m.StoreMetrics
	}

	if cfg.Session.Username != "" {
		sessionCfg.Credentials = &session.Credentials{
			Username: cfg.Session.Username,
			Password: cfg.Session.Password,
		}
	}

	for _, g := range cfg.Grids {
		sessionCfg.Grids = append(sessionCfg.Grids, session.GridDefaults{
			Namespace:   g.Namespace,
			ChunkSize:   g.ChunkSize,
			ContentType: g.ContentType,
		})
	}

	sess, err := session.New(ctx, store, sessionCfg)
	if err != nil {
		// The session never took ownership; release the store here.
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("Failed to close document store after session error: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("Session ready: store=%s pool_size=%d ops_per_second=%d",
		cfg.Store.Type, cfg.Session.PoolSize, cfg.Session.OpsPerSecond)

	return sess, nil
}

// CreateCollector creates the orphaned chunk collector from configuration.
//
// The collector is returned stopped; the caller starts it. Returns nil
// (and no error) when garbage collection is disabled.
//
// Parameters:
//   - sess: Session providing namespace resolution
//   - cfg: Garbage collection configuration
//
// Returns:
//   - *gc.Collector: Initialized collector, or nil when disabled
//   - error: Collector configuration error
func CreateCollector(sess *session.Session, cfg *GCConfig) (*gc.Collector, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	collector, err := gc.NewCollector(sess, gc.Config{
		Enabled:    cfg.Enabled,
		Interval:   cfg.Interval,
		Namespaces: cfg.Namespaces,
		DryRun:     cfg.DryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create garbage collector: %w", err)
	}

	return collector, nil
}
