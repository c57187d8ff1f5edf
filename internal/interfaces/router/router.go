package router

import (
	authsvc "obraflow-backend/internal/application/auth"
	ledgersvc "obraflow-backend/internal/application/ledger"
	reconsvc "obraflow-backend/internal/application/reconciliation"
	usersvc "obraflow-backend/internal/application/user"
	"obraflow-backend/internal/config"
	"obraflow-backend/internal/infrastructure/coreapi"
	"obraflow-backend/internal/infrastructure/database"
	authhandler "obraflow-backend/internal/interfaces/handlers/auth"
	healthhandler "obraflow-backend/internal/interfaces/handlers/health"
	reconhandler "obraflow-backend/internal/interfaces/handlers/reconciliation"
	userhandler "obraflow-backend/internal/interfaces/handlers/user"
	"obraflow-backend/internal/middleware"
	"obraflow-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all global middleware and route
// registration. Returns the DB and Redis handles for startup checks.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionHandler, rdb, err := middleware.Session(middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	})
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.ResponseFormatter())
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	core := &coreapi.Client{BaseURL: cfg.CoreAPIURL, APIKey: cfg.CoreAPIKey}

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             nil,
		Core:           core,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, nil, nil, errDB
		}
		hh.DB = &gormDBPinger{db: db}
	}

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}

	var userFinder authsvc.UserFinder
	if db != nil {
		userFinder = &authsvc.GormUserFinder{DB: db}
	}
	ah := &authhandler.Handlers{
		UserFinder: userFinder,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	if db != nil && rdb != nil {
		// Users
		us := &usersvc.Service{DB: db, Rdb: rdb}
		uh := &userhandler.Handlers{Service: us, Config: sessionCfg}
		// create-user is public (registration)
		app.Post("/api/v1/users/create-user", uh.CreateUser)
		ug := app.Group("/api/v1/users", middleware.RequireAuth())
		ug.Put("/update-user", uh.UpdateUser)
		ug.Get("/view-user", uh.ViewUser)
		ug.Patch("/update-role", middleware.AuthorizePermission(constants.AssignRole), uh.UpdateRole)
		ug.Delete("/remove-user", middleware.AuthorizePermission(constants.RemoveUser), uh.RemoveUser)
	}

	// Reconciliation ledger. The DB handle only feeds the audit trail; the
	// ledger itself is built from the upstream core API.
	rs := &reconsvc.Service{
		Aggregator: &ledgersvc.Aggregator{Source: core, Concurrency: cfg.FetchConcurrency},
		Store:      core,
		DB:         db,
	}
	rh := &reconhandler.Handlers{Service: rs, PageSize: cfg.PageSize}
	rg := app.Group("/api/v1/reconciliation", middleware.RequireAuth())
	rg.Get("/rows", middleware.AuthorizePermission(constants.ViewLedger), rh.GetRows)
	rg.Get("/ledger", middleware.AuthorizePermission(constants.ViewLedger), rh.GetLedger)
	rg.Post("/reload", middleware.AuthorizePermission(constants.ReloadLedger), rh.Reload)
	rg.Post("/payments", middleware.AuthorizePermission(constants.RegisterPayment), rh.CreatePayment)
	rg.Post("/payments/:payment_id/cancel", middleware.AuthorizePermission(constants.CancelPayment), rh.CancelPayment)

	return app, db, rdb, nil
}
