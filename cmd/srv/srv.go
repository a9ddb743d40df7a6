package main

import (
	"context"
	"fmt"
	"time"

	"github.com/scailotto/backend/config"
	"github.com/scailotto/backend/internal/domain"
	"github.com/scailotto/backend/internal/domain/allocation"
	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/internal/domain/ledger/eth"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/internal/repository"
	"github.com/scailotto/backend/pkg/cache"
	"github.com/scailotto/backend/pkg/logger"
	"github.com/scailotto/backend/pkg/router"
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/scailotto/backend/pkg/xredis"
	"github.com/urfave/cli/v2"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type srv struct {
	app *cli.App
	ctx context.Context

	cache   cache.Cache
	ledgers *ledger.Registry

	roundRepo       repository.RoundRepository
	ticketRepo      repository.TicketRepository
	transactionRepo repository.TransactionRepository
	userRepo        repository.UserRepository

	engine *allocation.Engine

	lotteryDomain domain.LotteryDomain
	userDomain    domain.UserDomain

	router *router.Router
}

func (s *srv) loadConfig(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return fmt.Errorf("cannot load configs: %w", err)
	}

	s.ctx = xcontext.WithConfigs(s.ctx, cfg)
	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(cfg.LogLevel))
	return nil
}

func (s *srv) newDatabase() (*gorm.DB, error) {
	cfg := xcontext.Configs(s.ctx).Database

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                      cfg.ConnectionString(),
			DefaultStringSize:        256,
			DisableDatetimePrecision: true,
			DontSupportRenameIndex:   true,
			DontSupportRenameColumn:  true,
		})
	case "postgres":
		dialector = postgres.Open(cfg.ConnectionString())
	case "sqlite":
		dialector = sqlite.Open(cfg.ConnectionString())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// Writers of a sqlite file must be serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func (s *srv) loadDatabase() error {
	db, err := s.newDatabase()
	if err != nil {
		return fmt.Errorf("cannot connect to database: %w", err)
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	return s.migrateDB()
}

func (s *srv) migrateDB() error {
	if err := entity.MigrateTable(s.ctx); err != nil {
		return fmt.Errorf("cannot migrate database: %w", err)
	}

	return nil
}

func (s *srv) loadCache() error {
	cfg := xcontext.Configs(s.ctx).Cache

	switch cfg.Backend {
	case "redis":
		client, err := xredis.NewClient(s.ctx)
		if err != nil {
			return fmt.Errorf("cannot connect to redis: %w", err)
		}
		s.cache = cache.NewRedisCache(client, cfg.TTL.Duration)
	case "memory", "":
		s.cache = cache.NewMemoryCache(cfg.TTL.Duration, cfg.Capacity)
	default:
		return fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}

	return nil
}

// loadLedgers connects every configured network. A network which cannot be
// set up is skipped, requests for it are answered as unsupported.
func (s *srv) loadLedgers() error {
	networks := xcontext.Configs(s.ctx).Networks

	lotteries := make([]ledger.Ledger, 0, len(networks))
	for name, cfg := range networks {
		client := eth.NewEthClient(name, cfg.Rpcs, cfg.RefreshConnectionFrequency.Duration)
		client.Start(s.ctx)

		setupCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		l, err := eth.NewLottery(setupCtx, name, cfg, client)
		cancel()
		if err != nil {
			xcontext.Logger(s.ctx).Errorf("Cannot set up network %s: %v", name, err)
			continue
		}

		lotteries = append(lotteries, l)
	}

	if len(lotteries) == 0 {
		return fmt.Errorf("no network is available")
	}

	s.ledgers = ledger.NewRegistry(lotteries...)
	xcontext.Logger(s.ctx).Infof("Supported networks: %v", s.ledgers.Networks())
	return nil
}

func (s *srv) loadRepos() {
	s.roundRepo = repository.NewRoundRepository()
	s.ticketRepo = repository.NewTicketRepository()
	s.transactionRepo = repository.NewTransactionRepository()
	s.userRepo = repository.NewUserRepository()
}

func (s *srv) loadEngine() {
	s.engine = allocation.NewEngine(
		s.ctx,
		s.roundRepo,
		s.ticketRepo,
		s.transactionRepo,
		s.userRepo,
		s.ledgers,
		s.cache,
	)
}

func (s *srv) loadDomains() {
	s.lotteryDomain = domain.NewLotteryDomain(s.engine, s.roundRepo, s.ticketRepo, s.cache)
	s.userDomain = domain.NewUserDomain(s.userRepo, s.ticketRepo, s.transactionRepo)
}

// loadAll prepares everything a command needs except the router.
func (s *srv) loadAll() error {
	if err := s.loadDatabase(); err != nil {
		return err
	}

	if err := s.loadCache(); err != nil {
		return err
	}

	if err := s.loadLedgers(); err != nil {
		return err
	}

	s.loadRepos()
	s.loadEngine()
	s.loadDomains()
	return nil
}
