package testutil

import (
	"context"
	"time"

	"github.com/scailotto/backend/config"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/logger"
	"github.com/scailotto/backend/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const Network = "scai"

func MockConfigs() config.Configs {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.LogLevel = "ERROR"
	cfg.Database.Driver = "sqlite"
	cfg.Lottery.FinalityTimeout = config.Duration{Duration: time.Second}
	cfg.Lottery.ReceiptPollInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.Lottery.ReservationGrace = config.Duration{Duration: time.Minute}
	return cfg
}

// MockContext returns a context holding test configs, a silent logger and a
// fresh migrated in-memory database.
func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// Every connection to :memory: is a different database.
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, MockConfigs())
	ctx = xcontext.WithLogger(ctx, logger.NewNopLogger())
	ctx = xcontext.WithDB(ctx, db)

	if err := entity.MigrateTable(ctx); err != nil {
		panic(err)
	}

	return ctx
}
