// Package app wires the parking layer services together and manages the HTTP
// server lifecycle.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/ParkFee-Network/parking_layer/internal/app/httpapi"
	"github.com/ParkFee-Network/parking_layer/internal/app/metrics"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/sessions"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/settlement"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/users"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage/memory"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage/postgres"
	"github.com/ParkFee-Network/parking_layer/internal/chain"
	"github.com/ParkFee-Network/parking_layer/internal/config"
	"github.com/ParkFee-Network/parking_layer/internal/platform/migrations"
	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users   storage.UserStore
	Parking storage.ParkingStore
}

// Application ties the domain services together.
type Application struct {
	cfg         *config.Config
	log         *logger.Logger
	httpServer  *http.Server
	db          *sql.DB
	chainClient *chain.Client

	Users      *users.Service
	Sessions   *sessions.Service
	Settlement *settlement.Service
}

// New builds an application from pre-constructed dependencies. Used by tests
// and by NewApplication after it has resolved configuration.
func New(stores Stores, contract settlement.Contract, settleTimeout time.Duration, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Parking == nil {
		stores.Parking = mem
	}

	userSvc := users.New(stores.Users, log.WithComponent("users"))
	sessionSvc := sessions.New(userSvc, stores.Parking, log.WithComponent("sessions"))
	settlementSvc := settlement.New(contract, settleTimeout, log.WithComponent("settlement"))

	return &Application{
		log:        log,
		Users:      userSvc,
		Sessions:   sessionSvc,
		Settlement: settlementSvc,
	}
}

// NewApplication constructs a fully configured application: config load,
// store selection, schema migration, settlement client, HTTP server.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging).WithComponent("app")

	var (
		stores Stores
		db     *sql.DB
	)
	if cfg.Database.DSN != "" {
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := migrations.Apply(context.Background(), db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		store := postgres.New(db)
		stores = Stores{Users: store, Parking: store}
	} else {
		log.Warn("DATABASE_DSN not set; using in-memory store")
	}

	var (
		contract    settlement.Contract
		chainClient *chain.Client
	)
	if cfg.Chain.RPCURL != "" && cfg.Chain.ContractHash != "" {
		client, err := chain.NewClient(chain.Config{
			RPCURL:    cfg.Chain.RPCURL,
			NetworkID: cfg.Chain.NetworkID,
			Timeout:   cfg.Chain.Timeout(),
		})
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("configure chain client: %w", err)
		}
		contract = chain.NewParkingContract(client, cfg.Chain.ContractHash)
		chainClient = client
	} else {
		log.Warn("settlement layer not configured; /parking settlement endpoints disabled")
	}

	application := New(stores, contract, cfg.Chain.Timeout(), log)
	application.cfg = cfg
	application.db = db
	application.chainClient = chainClient
	application.httpServer = buildHTTPServer(cfg, application)
	return application, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	if a.httpServer == nil {
		return fmt.Errorf("application built without HTTP server")
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

func buildHTTPServer(cfg *config.Config, application *Application) *http.Server {
	svc := httpapi.Services{
		Users:      application.Users,
		Sessions:   application.Sessions,
		Settlement: application.Settlement,
	}
	// Assign only when present so the handler's nil check sees a nil
	// interface, not a typed nil pointer.
	if application.chainClient != nil {
		svc.Chain = application.chainClient
	}
	api := httpapi.NewHandler(svc)

	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	var handler http.Handler = httpapi.WithRateLimit(api, limiter)
	handler = httpapi.WithCORS(handler, cfg.Server.AllowedOrigins)
	handler = metrics.InstrumentHandler(handler)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", handler)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
