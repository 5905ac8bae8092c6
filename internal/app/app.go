// Package app wires configuration into the services shared by the API
// server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/api/handler"
	"github.com/greengig/greengig/internal/blobstore"
	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/classifier/huggingface"
	"github.com/greengig/greengig/internal/concert"
	"github.com/greengig/greengig/internal/config"
	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/events"
	"github.com/greengig/greengig/internal/featureflags"
	"github.com/greengig/greengig/internal/imagequality"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/provider/resilience"
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/storage"
	"github.com/greengig/greengig/internal/submission"
	"github.com/greengig/greengig/internal/telemetry"
	"github.com/greengig/greengig/internal/travel"
	"github.com/greengig/greengig/internal/user"
	"github.com/greengig/greengig/internal/verification"
)

// FlagCacheTTL is how long feature flag values are cached.
const FlagCacheTTL = time.Minute

// Core holds the persistence-backed services both binaries use.
type Core struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *resilience.Registry
	Metrics  *telemetry.PipelineMetrics

	// Pool is nil with the memory store driver.
	Pool *pgxpool.Pool

	Users    *user.Service
	Proofs   proof.Repository
	Concerts concert.Repository
	Store    storage.Store
	Catalog  reward.Catalog
	Rewards  *reward.Engine
	Flags    *featureflags.Service

	closers []func()
}

// Open builds the store selected by cfg.Store.Driver, loads seed data, and
// creates the reward engine and feature flag service.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Core, error) {
	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	c := &Core{
		Config:   cfg,
		Logger:   log,
		Registry: resilience.NewRegistry(),
		Metrics:  metrics,
	}

	var (
		userRepo user.Repository
		flagRepo featureflags.Repository
	)

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		dbConfig := cfg.DatabaseConfig()
		pool, err := database.Connect(ctx, dbConfig, log)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		if err := database.EnsureSchema(ctx, pool); err != nil {
			c.Close()
			return nil, err
		}

		catalog := reward.NewPostgresCatalog(pool)
		if err := catalog.Seed(ctx, cfg.Rewards); err != nil {
			c.Close()
			return nil, fmt.Errorf("seed reward rules: %w", err)
		}

		userRepo = user.NewPostgresRepository(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		c.Proofs = proof.NewPostgresRepository(pool)
		c.Concerts = concert.NewPostgresRepository(pool)
		c.Store = storage.NewPostgresStore(pool)
		c.Catalog = catalog

	default:
		users := user.NewInMemoryRepository()
		proofs := proof.NewInMemoryRepository()
		catalog, err := reward.NewStaticCatalog(cfg.Rewards)
		if err != nil {
			return nil, err
		}

		userRepo = users
		flagRepo = featureflags.NewInMemoryRepository()
		c.Proofs = proofs
		c.Concerts = concert.NewInMemoryRepository()
		c.Store = storage.NewMemoryStore(users, proofs)
		c.Catalog = catalog
		log.Warn().Msg("using in-memory store - data is lost on restart")
	}

	if err := c.seed(ctx, userRepo); err != nil {
		c.Close()
		return nil, err
	}

	c.Users = user.NewService(userRepo)
	c.Rewards = reward.NewEngine(reward.EngineConfig{
		Catalog: c.Catalog,
		Store:   c.Store,
		Logger:  log,
		Metrics: metrics,
	})
	c.Flags = featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   FlagCacheTTL,
	})

	return c, nil
}

func (c *Core) seed(ctx context.Context, users user.Repository) error {
	seedUsers, err := c.Config.Seed.UserList(time.Now().UTC())
	if err != nil {
		return err
	}
	created := 0
	for _, u := range seedUsers {
		err := users.Create(ctx, u)
		switch {
		case errors.Is(err, user.ErrUserExists):
		case err != nil:
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		default:
			created++
		}
	}

	concerts, err := c.Config.Seed.ConcertList()
	if err != nil {
		return err
	}
	for _, con := range concerts {
		if err := c.Concerts.Upsert(ctx, con); err != nil {
			return fmt.Errorf("seed concert %s: %w", con.ID, err)
		}
	}

	if created > 0 || len(concerts) > 0 {
		c.Logger.Info().
			Int("users_created", created).
			Int("concerts", len(concerts)).
			Msg("seed data loaded")
	}
	return nil
}

// Database returns the readiness pinger, or nil for the memory store.
func (c *Core) Database() handler.Pinger {
	if c.Pool == nil {
		return nil
	}
	return c.Pool
}

// Submissions builds the upload pipeline: the quality gate, blob storage,
// the classifier chain, and the event publisher.
func (c *Core) Submissions(ctx context.Context) (*submission.Service, error) {
	cfg := c.Config

	emissionOverrides, err := cfg.EmissionOverrides()
	if err != nil {
		return nil, err
	}
	emissions, err := travel.NewEmissionTable(emissionOverrides)
	if err != nil {
		return nil, err
	}

	policy, err := verification.NewApprovalPolicy(cfg.Approval.Threshold)
	if err != nil {
		return nil, err
	}

	blobs, err := c.blobStore(ctx)
	if err != nil {
		return nil, err
	}

	aggregator, err := c.classifier()
	if err != nil {
		return nil, err
	}

	svcConfig := submission.Config{
		Gate: imagequality.NewGate(imagequality.GateConfig{
			MinWidth:  cfg.Quality.MinWidth,
			MinHeight: cfg.Quality.MinHeight,
			MaxBytes:  cfg.Quality.MaxBytes,
		}),
		Concerts:   c.Concerts,
		Emissions:  emissions,
		Blobs:      blobs,
		Classifier: aggregator,
		Policy:     policy,
		Rewards:    c.Rewards,
		Store:      c.Store,
		Proofs:     c.Proofs,
		Users:      c.Users,
		Flags:      c.Flags,
		Metrics:    c.Metrics,
		Logger:     c.Logger,
	}

	if cfg.PubSub.ProjectID != "" {
		publisher, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.PubSub.ProjectID,
			Topic:     cfg.PubSub.EventsTopic,
			Logger:    c.Logger,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() {
			if err := publisher.Close(); err != nil {
				c.Logger.Error().Err(err).Msg("failed to close event publisher")
			}
		})
		svcConfig.Events = publisher
		c.Logger.Info().Str("topic", cfg.PubSub.EventsTopic).Msg("proof events enabled")
	}

	return submission.NewService(svcConfig), nil
}

func (c *Core) blobStore(ctx context.Context) (blobstore.Store, error) {
	if c.Config.Blob.Driver != config.DriverMinio {
		c.Logger.Warn().Msg("using in-memory blob store - proof images are lost on restart")
		return blobstore.NewMemory(), nil
	}

	m := c.Config.Blob.Minio
	store, err := blobstore.NewMinio(ctx, blobstore.MinioConfig{
		Endpoint:     m.Endpoint,
		AccessKey:    m.AccessKey,
		SecretKey:    m.SecretKey,
		Bucket:       m.Bucket,
		Secure:       m.Secure,
		Region:       m.Region,
		CreateBucket: m.CreateBucket,
		Registry:     c.Registry,
		Logger:       c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	c.Logger.Info().Str("endpoint", m.Endpoint).Str("bucket", m.Bucket).Msg("minio blob store connected")
	return store, nil
}

func (c *Core) classifier() (*classifier.Aggregator, error) {
	cc := c.Config.Classifier

	sources := make([]classifier.Classifier, 0, len(cc.Models))
	for _, model := range cc.Models {
		client, err := huggingface.NewClient(huggingface.ClientConfig{
			Model:    model,
			BaseURL:  cc.BaseURL,
			Token:    cc.Token,
			Timeout:  cc.Timeout,
			Registry: c.Registry,
			Logger:   c.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("classifier %s: %w", model, err)
		}
		sources = append(sources, client)
	}
	if len(sources) == 0 {
		c.Logger.Warn().Msg("no classifier models configured - every proof needs manual review")
	}

	var keywords classifier.KeywordTable
	if len(cc.Keywords) > 0 {
		table, err := classifier.NewKeywordTable(cc.Keywords)
		if err != nil {
			return nil, err
		}
		keywords = table
	}

	return classifier.NewAggregator(classifier.AggregatorConfig{
		Sources:                sources,
		Keywords:               keywords,
		AcceptThreshold:        cc.AcceptThreshold,
		LowConfidenceThreshold: cc.LowConfidence,
		ReliableThreshold:      cc.Reliable,
		CallTimeout:            cc.Timeout,
		Logger:                 c.Logger,
		Metrics:                c.Metrics,
		Registry:               c.Registry,
	}), nil
}

// Close releases connections in reverse order of creation.
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
