// Command recalc replays the CO₂ derivation over every stored energy
// entry. Run it after an emission factor update so historical rows
// match what interactive writes would produce today.
package main

import (
	"flag"
	"log/slog"

	"github.com/greencore/api/internal/config"
	"github.com/greencore/api/internal/db"
	"github.com/greencore/api/internal/logger"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	batch := flag.Int("batch", 500, "entries per batch")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), "")

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

	co2Service := service.NewCO2Service(repository.NewEnergyRepository(database), *batch)

	result, err := co2Service.Recalculate(*dryRun)
	if err != nil {
		slog.Error("recalculation failed", "error", err)
		panic(err)
	}

	slog.Info("done", "scanned", result.Scanned, "updated", result.Updated, "dry_run", result.DryRun)
}
