package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/phenrril/printstock/internal/adapters/httpserver"
	"github.com/phenrril/printstock/internal/adapters/lock"
	"github.com/phenrril/printstock/internal/adapters/repo/memory"
	"github.com/phenrril/printstock/internal/adapters/repo/mongodb"
	pgrepo "github.com/phenrril/printstock/internal/adapters/repo/postgres"
	"github.com/phenrril/printstock/internal/domain"
	"github.com/phenrril/printstock/internal/usecase"
)

type App struct {
	Config Config
	DB     *gorm.DB
	Mongo  *mongodriver.Client
	MongoD *mongodriver.Database
	Redis  *redis.Client

	StockUC   *usecase.StockUC
	ImportUC  *usecase.ImportUC
	ProductUC *usecase.ProductUC
}

type stores struct {
	products domain.ProductRepo
	ledger   domain.LedgerRepo
	records  domain.DetailedRecordRepo
}

func NewApp(ctx context.Context, cfg Config) (*App, error) {
	a := &App{Config: cfg}

	var st stores
	switch cfg.StoreDriver {
	case DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.DB = db
		st = stores{pgrepo.NewProductRepo(db), pgrepo.NewLedgerRepo(db), pgrepo.NewDetailedRecordRepo(db)}
	case DriverMongo:
		client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		a.Mongo, a.MongoD = client, db
		st = stores{mongodb.NewProductRepo(db), mongodb.NewLedgerRepo(db), mongodb.NewDetailedRecordRepo(db)}
	case DriverMemory:
		st = stores{memory.NewProductRepo(), memory.NewLedgerRepo(), memory.NewDetailedRecordRepo()}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var locker domain.Locker
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.Redis = rdb
		locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = lock.NewLocal()
	}

	a.StockUC = &usecase.StockUC{Products: st.products, Ledger: st.ledger, Records: st.records, Locks: locker}
	a.ImportUC = &usecase.ImportUC{Stock: a.StockUC, DefaultLengthUnit: cfg.DefaultLengthUnit}
	a.ProductUC = &usecase.ProductUC{Products: st.products, Ledger: st.ledger}

	log.Info().
		Str("store", cfg.StoreDriver).
		Bool("redis_locks", a.Redis != nil).
		Msg("app wired")
	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(a.StockUC, a.ImportUC, a.ProductUC, a.Config.UploadMaxMB<<20)
}

// Migrate creates tables or indexes for the configured store.
func (a *App) Migrate(ctx context.Context) error {
	switch {
	case a.DB != nil:
		return pgrepo.Migrate(a.DB.WithContext(ctx))
	case a.MongoD != nil:
		return mongodb.EnsureIndexes(ctx, a.MongoD)
	}
	return nil
}

// RunResumer completes interrupted intake commits once at start and then
// every interval until ctx is done.
func (a *App) RunResumer(ctx context.Context, interval time.Duration) {
	resume := func() {
		n, err := a.StockUC.ResumePending(ctx)
		if err != nil {
			log.Error().Err(err).Int("resumed", n).Msg("resume pending intakes")
			return
		}
		if n > 0 {
			log.Info().Int("resumed", n).Msg("pending intakes committed")
		}
	}
	resume()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resume()
		}
	}
}

func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
