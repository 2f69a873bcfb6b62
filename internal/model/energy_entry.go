package model

import (
	"time"
)

const (
	SourceSolar      = "solar"
	SourceWind       = "wind"
	SourceHydro      = "hydro"
	SourceBiomass    = "biomass"
	SourceGeothermal = "geothermal"
	SourceGrid       = "grid"
	SourceOther      = "other"
)

// ValidSources is the accepted set for interactive writes. The CO₂ engine
// tolerates anything, but new entries must name a known source.
var ValidSources = []string{
	SourceSolar,
	SourceWind,
	SourceHydro,
	SourceBiomass,
	SourceGeothermal,
	SourceGrid,
	SourceOther,
}

func IsValidSource(source string) bool {
	for _, s := range ValidSources {
		if s == source {
			return true
		}
	}
	return false
}

// EnergyEntry is one energy-consumption observation. CO2Emitted and
// CO2Avoided are derived from source and amount immediately before every
// write; client-supplied values are ignored.
type EnergyEntry struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	Source      string    `db:"source" json:"source"`
	AmountKWh   float64   `db:"amount_kwh" json:"amount"`
	Cost        float64   `db:"cost" json:"cost"`
	Date        time.Time `db:"date" json:"date"`
	Description string    `db:"description" json:"description"`
	Location    string    `db:"location" json:"location"`
	Notes       string    `db:"notes" json:"notes"`
	CO2Emitted  float64   `db:"co2_emitted" json:"co2Emitted"`
	CO2Avoided  float64   `db:"co2_avoided" json:"co2Avoided"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
