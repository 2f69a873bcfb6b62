package app

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/greencore/api/internal/config"
	"github.com/greencore/api/internal/db"
	"github.com/greencore/api/internal/mailer"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/service"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Cache             *redis.Client
	Mailer            *mailer.Mailer
	UserRepository    repository.UserRepository
	AuthService       *service.AuthService
	UserService       *service.UserService
	EnergyService     *service.EnergyService
	NewsletterService *service.NewsletterService
	AdminService      *service.AdminService
	CO2Service        *service.CO2Service
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Optional Redis cache for stats aggregates
	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %v", err)
		}
		cache = redis.NewClient(opts)
		slog.Info("stats cache enabled", "ttl", cfg.StatsCacheTTL)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	sessionRepository := repository.NewSessionRepository(database)
	energyRepository := repository.NewEnergyRepository(database)
	subscriberRepository := repository.NewSubscriberRepository(database)

	// Outbound email worker
	mail := mailer.New(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppName, cfg.FrontendURL, cfg.IsDevelopment())

	// Services
	authService := service.NewAuthService(userRepository, sessionRepository, mail, service.AuthOptions{
		AccessSecret:       cfg.JWTSecret,
		RefreshSecret:      cfg.JWTRefreshSecret,
		AccessExpiry:       cfg.AccessTokenExpiry,
		RefreshExpiry:      cfg.RefreshTokenExpiry,
		ResetExpiry:        cfg.ResetTokenExpiry,
		BcryptCost:         cfg.BcryptCost,
		MaxSessions:        cfg.MaxSessions,
		LockoutMaxAttempts: cfg.LockoutMaxAttempts,
		LockoutDuration:    cfg.LockoutDuration,
		IsProduction:       cfg.IsProduction(),
	})
	userService := service.NewUserService(userRepository, energyRepository, sessionRepository, authService)
	energyService := service.NewEnergyService(energyRepository, cache, cfg.StatsCacheTTL)
	newsletterService := service.NewNewsletterService(subscriberRepository, mail)
	adminService := service.NewAdminService(userRepository, energyRepository, subscriberRepository, sessionRepository)
	co2Service := service.NewCO2Service(energyRepository, 500)

	return &App{
		Cfg:               cfg,
		DB:                database,
		Cache:             cache,
		Mailer:            mail,
		UserRepository:    userRepository,
		AuthService:       authService,
		UserService:       userService,
		EnergyService:     energyService,
		NewsletterService: newsletterService,
		AdminService:      adminService,
		CO2Service:        co2Service,
	}, nil
}

func (a *App) Close() error {
	if a.Mailer != nil {
		a.Mailer.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
