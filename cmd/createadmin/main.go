// Command createadmin provisions a superadmin account from the command
// line, for bootstrapping a fresh deployment.
package main

import (
	"flag"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/greencore/api/internal/config"
	"github.com/greencore/api/internal/db"
	"github.com/greencore/api/internal/logger"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/validation"
)

func main() {
	name := flag.String("name", "", "display name")
	username := flag.String("username", "", "username")
	email := flag.String("email", "", "email address")
	password := flag.String("password", "", "password")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), "")

	if err := validation.ValidateName(*name); err != nil {
		slog.Error("invalid name", "error", err)
		panic(err)
	}
	if err := validation.ValidateUsername(*username); err != nil {
		slog.Error("invalid username", "error", err)
		panic(err)
	}
	if err := validation.ValidateEmail(*email); err != nil {
		slog.Error("invalid email", "error", err)
		panic(err)
	}
	if err := validation.ValidatePassword(*password); err != nil {
		slog.Error("invalid password", "error", err)
		panic(err)
	}

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		panic(err)
	}
	defer func() {
		closeErr := database.Close()
		if closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		slog.Error("failed to run migrations", "error", err)
		panic(err)
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		panic(err)
	}
	hash := string(hashBytes)

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(*name),
		Username:     strings.ToLower(strings.TrimSpace(*username)),
		Email:        strings.TrimSpace(strings.ToLower(*email)),
		PasswordHash: &hash,
		Role:         model.RoleSuperadmin,
		Provider:     model.ProviderLocal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = repository.NewUserRepository(database).Create(user)
	if err != nil {
		slog.Error("failed to create superadmin", "error", err)
		panic(err)
	}

	slog.Info("superadmin created", "user_id", user.ID, "email", user.Email)
}
