package log

import "go.uber.org/zap"

var (
	SourceIngest    = zap.String("source", "ingest")
	SourceLedger    = zap.String("source", "ledger")
	SourceSpace     = zap.String("source", "space")
	SourceCache     = zap.String("source", "cache")
	SourceCleanup   = zap.String("source", "cleanup")
	SourceBatch     = zap.String("source", "batch")
	SourceDiscovery = zap.String("source", "bing")
	SourceThumbnail = zap.String("source", "cloudflare")
	SourcePG        = zap.String("source", "pq")
	SourceAPI       = zap.String("source", "api")
)
