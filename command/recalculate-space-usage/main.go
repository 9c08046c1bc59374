package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	gallery "github.com/bitmark-inc/picture-gallery"
	"github.com/bitmark-inc/picture-gallery/log"
)

func main() {
	dsn := flag.String("dsn", "postgres://localhost:5432/gallery?sslmode=disable", "postgres dsn")
	spaceID := flag.Int64("space", 0, "only recalculate this space")
	flag.Parse()

	if err := log.Initialize("info", true); err != nil {
		panic(fmt.Errorf("fail to initialize logger with error: %s", err.Error()))
	}

	db, err := gallery.OpenDatabase(*dsn, 1)
	if err != nil {
		log.Panic("fail to connect database", zap.Error(err))
	}

	ctx := context.Background()
	store := gallery.NewPostgresStore(db)

	ids := []int64{*spaceID}
	if *spaceID == 0 {
		if ids, err = store.ListSpaceIDs(ctx); err != nil {
			log.Panic("fail to list spaces", zap.Error(err))
		}
	}

	drifted := 0
	for _, id := range ids {
		before, after, err := store.RecalculateSpaceUsage(ctx, id)
		if err != nil {
			log.Error("fail to recalculate space", zap.Int64("spaceID", id), zap.Error(err))
			continue
		}

		if before.TotalCount != after.TotalCount || before.TotalSize != after.TotalSize {
			drifted++
			log.Warn("space usage drifted",
				zap.Int64("spaceID", id),
				zap.Int64("countBefore", before.TotalCount),
				zap.Int64("countAfter", after.TotalCount),
				zap.Int64("sizeBefore", before.TotalSize),
				zap.Int64("sizeAfter", after.TotalSize))
		}
	}

	log.Info("recalculation finished", zap.Int("spaces", len(ids)), zap.Int("drifted", drifted))
}
