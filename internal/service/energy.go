package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/co2"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
)

const (
	minEntryAmount = 0.01
	maxEntryAmount = 999999
)

var statsPeriods = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// EntryInput is the client-writable subset of an energy entry. CO₂
// figures are always derived server-side.
type EntryInput struct {
	Source      string    `json:"source"`
	Amount      float64   `json:"amount"`
	Cost        float64   `json:"cost"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
}

// TrendPoint is one day in the stats trend series.
type TrendPoint struct {
	Date       string  `json:"date"`
	AmountKWh  float64 `json:"amount"`
	CO2Emitted float64 `json:"co2Emitted"`
	CO2Avoided float64 `json:"co2Avoided"`
}

// Stats is the aggregate view over one period.
type Stats struct {
	Period              string                     `json:"period"`
	Totals              *repository.Totals         `json:"totals"`
	BySource            []*repository.SourceTotals `json:"bySource"`
	RenewableAmount     float64                    `json:"renewableAmount"`
	RenewablePercentage float64                    `json:"renewablePercentage"`
	Trend               []TrendPoint               `json:"trend"`
}

// ChartDay is one day in the per-source chart series; Sources maps
// source name to kWh for that day.
type ChartDay struct {
	Date    string             `json:"date"`
	Sources map[string]float64 `json:"sources"`
	Total   float64            `json:"total"`
}

type EnergyService struct {
	energyRepository repository.EnergyRepository
	cache            *redis.Client
	cacheTTL         time.Duration
}

// NewEnergyService wires the entry repository and an optional Redis
// client for stats caching; cache may be nil.
func NewEnergyService(energyRepository repository.EnergyRepository, cache *redis.Client, cacheTTL time.Duration) *EnergyService {
	return &EnergyService{
		energyRepository: energyRepository,
		cache:            cache,
		cacheTTL:         cacheTTL,
	}
}

func validateEntryInput(input EntryInput) error {
	if !model.IsValidSource(input.Source) {
		return apperr.Validation(fmt.Sprintf("unknown energy source %q", input.Source))
	}
	if input.Amount < minEntryAmount || input.Amount > maxEntryAmount {
		return apperr.Validation(fmt.Sprintf("amount must be between %g and %g kWh", float64(minEntryAmount), float64(maxEntryAmount)))
	}
	if input.Cost < 0 {
		return apperr.Validation("cost must not be negative")
	}
	return nil
}

func (s *EnergyService) Create(ctx context.Context, userID string, input EntryInput) (*model.EnergyEntry, error) {
	err := validateEntryInput(input)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	derived := co2.Compute(input.Source, input.Amount)

	entry := &model.EnergyEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Source:      input.Source,
		AmountKWh:   input.Amount,
		Cost:        input.Cost,
		Date:        date,
		Description: input.Description,
		Location:    input.Location,
		Notes:       input.Notes,
		CO2Emitted:  derived.Emitted,
		CO2Avoided:  derived.Avoided,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.energyRepository.Create(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	s.invalidateStats(ctx, userID)
	return entry, nil
}

func (s *EnergyService) ByID(userID, entryID string) (*model.EnergyEntry, error) {
	entry, err := s.energyRepository.ByID(userID, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, apperr.NotFound("energy entry")
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (s *EnergyService) Update(ctx context.Context, userID, entryID string, input EntryInput) (*model.EnergyEntry, error) {
	err := validateEntryInput(input)
	if err != nil {
		return nil, err
	}

	entry, err := s.ByID(userID, entryID)
	if err != nil {
		return nil, err
	}

	derived := co2.Compute(input.Source, input.Amount)

	entry.Source = input.Source
	entry.AmountKWh = input.Amount
	entry.Cost = input.Cost
	if !input.Date.IsZero() {
		entry.Date = input.Date
	}
	entry.Description = input.Description
	entry.Location = input.Location
	entry.Notes = input.Notes
	entry.CO2Emitted = derived.Emitted
	entry.CO2Avoided = derived.Avoided

	err = s.energyRepository.Update(entry)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, apperr.NotFound("energy entry")
		}
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	s.invalidateStats(ctx, userID)
	return entry, nil
}

func (s *EnergyService) Delete(ctx context.Context, userID, entryID string) error {
	err := s.energyRepository.Delete(userID, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return apperr.NotFound("energy entry")
		}
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	s.invalidateStats(ctx, userID)
	return nil
}

func (s *EnergyService) List(userID string, filter repository.EntryFilter) ([]*model.EnergyEntry, int, error) {
	entries, total, err := s.energyRepository.List(userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, total, nil
}

func (s *EnergyService) Recent(userID string, limit int) ([]*model.EnergyEntry, error) {
	if limit < 1 || limit > 50 {
		limit = 5
	}
	entries, err := s.energyRepository.Recent(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}
	return entries, nil
}

// Stats aggregates one period, serving from cache when available.
func (s *EnergyService) Stats(ctx context.Context, userID, period string) (*Stats, error) {
	days, ok := statsPeriods[period]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown period %q, expected one of 7d, 30d, 90d, 1y", period))
	}

	cacheKey := statsCacheKey(userID, period)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			stats := &Stats{}
			if json.Unmarshal(cached, stats) == nil {
				return stats, nil
			}
		} else if err != redis.Nil {
			slog.Warn("stats cache read failed", "error", err)
		}
	}

	since := time.Now().AddDate(0, 0, -days)

	totals, err := s.energyRepository.Totals(userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	bySource, err := s.energyRepository.BySource(userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by source: %w", err)
	}

	entries, err := s.energyRepository.Since(userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for trend: %w", err)
	}

	stats := &Stats{
		Period:   period,
		Totals:   totals,
		BySource: bySource,
		Trend:    dailyTrend(entries),
	}

	var renewable float64
	for _, row := range bySource {
		if co2.IsRenewable(row.Source) {
			renewable += row.AmountKWh
		}
	}
	stats.RenewableAmount = renewable
	if totals.AmountKWh > 0 {
		stats.RenewablePercentage = math.Round(renewable/totals.AmountKWh*1000) / 10
	}

	if s.cache != nil {
		encoded, err := json.Marshal(stats)
		if err == nil {
			err = s.cache.Set(ctx, cacheKey, encoded, s.cacheTTL).Err()
		}
		if err != nil {
			slog.Warn("stats cache write failed", "error", err)
		}
	}

	return stats, nil
}

// Chart returns a per-day, per-source kWh breakdown for one period.
func (s *EnergyService) Chart(ctx context.Context, userID, period string) ([]ChartDay, error) {
	days, ok := statsPeriods[period]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown period %q, expected one of 7d, 30d, 90d, 1y", period))
	}

	since := time.Now().AddDate(0, 0, -days)
	entries, err := s.energyRepository.Since(userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for chart: %w", err)
	}

	byDay := map[string]*ChartDay{}
	order := []string{}
	for _, entry := range entries {
		day := entry.Date.Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &ChartDay{Date: day, Sources: map[string]float64{}}
			byDay[day] = bucket
			order = append(order, day)
		}
		bucket.Sources[entry.Source] += entry.AmountKWh
		bucket.Total += entry.AmountKWh
	}

	chart := make([]ChartDay, 0, len(order))
	for _, day := range order {
		chart = append(chart, *byDay[day])
	}
	return chart, nil
}

// dailyTrend buckets entries by calendar day. Entries arrive date
// ascending, so the series stays ordered.
func dailyTrend(entries []*model.EnergyEntry) []TrendPoint {
	byDay := map[string]*TrendPoint{}
	order := []string{}
	for _, entry := range entries {
		day := entry.Date.Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &TrendPoint{Date: day}
			byDay[day] = point
			order = append(order, day)
		}
		point.AmountKWh += entry.AmountKWh
		point.CO2Emitted += entry.CO2Emitted
		point.CO2Avoided += entry.CO2Avoided
	}

	trend := make([]TrendPoint, 0, len(order))
	for _, day := range order {
		trend = append(trend, *byDay[day])
	}
	return trend
}

func statsCacheKey(userID, period string) string {
	return "stats:" + userID + ":" + period
}

// invalidateStats drops cached aggregates after any write. Cache misses
// are tolerated, so failures here only cost freshness.
func (s *EnergyService) invalidateStats(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(statsPeriods))
	for period := range statsPeriods {
		keys = append(keys, statsCacheKey(userID, period))
	}
	err := s.cache.Del(ctx, keys...).Err()
	if err != nil {
		slog.Warn("stats cache invalidation failed", "error", err, "user_id", userID)
	}
}
