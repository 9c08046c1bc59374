package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bitmark-inc/config-loader"
	gallery "github.com/bitmark-inc/picture-gallery"
	"github.com/bitmark-inc/picture-gallery/cache"
	"github.com/bitmark-inc/picture-gallery/externals/bing"
	"github.com/bitmark-inc/picture-gallery/externals/cloudflare"
	"github.com/bitmark-inc/picture-gallery/ingest"
	"github.com/bitmark-inc/picture-gallery/log"
	"github.com/bitmark-inc/picture-gallery/objectstore"
)

func newObjectStore(cfg Config) (objectstore.ObjectStore, error) {
	if cfg.Storage.Driver == "local" {
		return objectstore.NewLocalStore(cfg.Storage.LocalRoot, cfg.Storage.PublicURL)
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3.Region),
	}
	if cfg.S3.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	return objectstore.NewS3Store(awsSession, cfg.S3.Bucket, cfg.Storage.PublicURL), nil
}

func newSharedStore(ctx context.Context, cfg Config) (cache.SharedStore, func(), error) {
	if cfg.Cache.Backend == "mongodb" {
		store, err := cache.NewMongoDBStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.Name)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close(context.Background()) }, nil
	}

	store, err := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func main() {
	ctx := context.Background()

	config.LoadConfig("GALLERY")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		panic(err)
	}

	if err := log.Initialize(cfg.Log.Level, cfg.Debug); err != nil {
		panic(err)
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		log.Panic("Sentry initialization failed", zap.Error(err))
	}
	defer sentry.Flush(2 * time.Second)

	scope, scopeCloser, metricsHandler := newMetricsScope(cfg)
	defer scopeCloser.Close()

	db, err := gallery.OpenDatabase(cfg.Store.DSN, cfg.Store.LogLevel)
	if err != nil {
		log.Panic("fail to connect database", zap.Error(err))
	}
	if err := gallery.AutoMigrate(db); err != nil {
		log.Panic("fail to migrate database", zap.Error(err))
	}
	sqldb, err := db.DB()
	if err != nil {
		log.Panic("fail to get sql db", zap.Error(err))
	}

	objects, err := newObjectStore(cfg)
	if err != nil {
		log.Panic("fail to initiate object store", zap.Error(err))
	}

	shared, closeShared, err := newSharedStore(ctx, cfg)
	if err != nil {
		log.Panic("fail to initiate shared cache", zap.Error(err))
	}
	defer closeShared()

	local := cache.NewLocalCache(cfg.Cache.LocalSize, cfg.Cache.LocalTTL)
	listener := cache.NewListener(cfg.Store.DSN, cfg.Cache.NotifyChannel, local)
	if err := listener.Start(); err != nil {
		log.Panic("fail to listen cache invalidation", zap.Error(err))
	}
	defer listener.Close()

	listings := cache.NewReadThrough(gallery.ListingNamespace, local, shared, cache.Options{
		SharedTTL:   cfg.Cache.SharedTTL,
		Jitter:      cfg.Cache.SharedJitter,
		Broadcaster: cache.NewPostgresBroadcaster(sqldb, cfg.Cache.NotifyChannel),
		Scope:       scope,
	})

	var thumbnailer ingest.Thumbnailer
	var thumbnailRemover gallery.ThumbnailRemover
	if cfg.Cloudflare.APIToken != "" {
		thumbnails, err := cloudflare.New(cfg.Cloudflare.AccountID, cfg.Cloudflare.AccountHash,
			cfg.Cloudflare.APIToken, cfg.Cloudflare.Variant, cfg.Debug)
		if err != nil {
			log.Panic("fail to initiate cloudflare client", zap.Error(err))
		}
		thumbnailer = thumbnails
		thumbnailRemover = thumbnails
	}

	store := gallery.NewPostgresStore(db)
	cleaner := gallery.NewCleaner(store, objects, thumbnailRemover, cfg.Cleanup.Workers, cfg.Cleanup.QueueSize)
	defer cleaner.Close()

	fetchClient := &http.Client{Timeout: cfg.Ingest.FetchTimeout}
	pipeline := ingest.NewPipeline(objects, thumbnailer, scope)
	pictures := gallery.NewPictureService(store, gallery.NewQuotaLedger(db), pipeline, listings, cleaner)

	discovery := bing.New(cfg.Discovery.Endpoint)
	discovery.Debug(cfg.Debug)

	s := NewGalleryServer(store,
		pictures,
		gallery.NewSpaceGate(db),
		gallery.NewBatchAcquisition(pictures, discovery, fetchClient, scope),
		fetchClient,
		cfg.Server.JWTSecret,
		cfg.Server.CORSOrigins)
	s.ExposeMetrics(metricsHandler)
	s.SetupRoute()
	if err := s.Run(cfg.Server.Port); err != nil {
		log.Panic("server interrupted", zap.Error(err))
	}
}
