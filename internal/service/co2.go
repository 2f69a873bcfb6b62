package service

import (
	"fmt"
	"log/slog"

	"github.com/greencore/api/internal/co2"
	"github.com/greencore/api/internal/repository"
)

// RecalcResult summarizes one recalculation run.
type RecalcResult struct {
	Scanned int  `json:"scanned"`
	Updated int  `json:"updated"`
	DryRun  bool `json:"dryRun"`
}

// CO2Service replays the CO₂ derivation over stored entries in batches.
// Used after emission factor updates so historical rows converge on the
// current table.
type CO2Service struct {
	energyRepository repository.EnergyRepository
	batchSize        int
}

func NewCO2Service(energyRepository repository.EnergyRepository, batchSize int) *CO2Service {
	if batchSize < 1 {
		batchSize = 500
	}
	return &CO2Service{
		energyRepository: energyRepository,
		batchSize:        batchSize,
	}
}

// Recalculate walks every entry and rewrites rows whose stored CO₂
// figures differ from the current derivation. With dryRun only the
// counts are reported.
func (s *CO2Service) Recalculate(dryRun bool) (*RecalcResult, error) {
	result := &RecalcResult{DryRun: dryRun}

	for offset := 0; ; offset += s.batchSize {
		entries, err := s.energyRepository.Page(offset, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load entry batch at offset %d: %w", offset, err)
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			result.Scanned++

			derived := co2.Compute(entry.Source, entry.AmountKWh)
			if derived.Emitted == entry.CO2Emitted && derived.Avoided == entry.CO2Avoided {
				continue
			}

			result.Updated++
			if dryRun {
				continue
			}

			err = s.energyRepository.UpdateCO2(entry.ID, derived.Emitted, derived.Avoided)
			if err != nil {
				return nil, fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
			}
		}

		if len(entries) < s.batchSize {
			break
		}
	}

	slog.Info("co2 recalculation complete", "scanned", result.Scanned, "updated", result.Updated, "dry_run", dryRun)
	return result, nil
}
