package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
)

// fakeEnergyRepo is an in-memory repository.EnergyRepository.
type fakeEnergyRepo struct {
	entries map[string]*model.EnergyEntry
}

func newFakeEnergyRepo() *fakeEnergyRepo {
	return &fakeEnergyRepo{entries: map[string]*model.EnergyEntry{}}
}

func (r *fakeEnergyRepo) Create(entry *model.EnergyEntry) error {
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *fakeEnergyRepo) ByID(userID, entryID string) (*model.EnergyEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, repository.ErrEntryNotFound
	}
	clone := *e
	return &clone, nil
}

func (r *fakeEnergyRepo) Update(entry *model.EnergyEntry) error {
	e, ok := r.entries[entry.ID]
	if !ok || e.UserID != entry.UserID {
		return repository.ErrEntryNotFound
	}
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *fakeEnergyRepo) Delete(userID, entryID string) error {
	e, ok := r.entries[entryID]
	if !ok || e.UserID != userID {
		return repository.ErrEntryNotFound
	}
	delete(r.entries, entryID)
	return nil
}

func (r *fakeEnergyRepo) userEntries(userID string) []*model.EnergyEntry {
	var out []*model.EnergyEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out
}

func (r *fakeEnergyRepo) List(userID string, filter repository.EntryFilter) ([]*model.EnergyEntry, int, error) {
	out := r.userEntries(userID)
	return out, len(out), nil
}

func (r *fakeEnergyRepo) Recent(userID string, limit int) ([]*model.EnergyEntry, error) {
	out := r.userEntries(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEnergyRepo) Since(userID string, since time.Time) ([]*model.EnergyEntry, error) {
	var out []*model.EnergyEntry
	for _, e := range r.userEntries(userID) {
		if !e.Date.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *fakeEnergyRepo) Totals(userID string, since time.Time) (*repository.Totals, error) {
	totals := &repository.Totals{}
	entries, _ := r.Since(userID, since)
	for _, e := range entries {
		totals.AmountKWh += e.AmountKWh
		totals.Cost += e.Cost
		totals.CO2Emitted += e.CO2Emitted
		totals.CO2Avoided += e.CO2Avoided
		totals.Count++
	}
	if totals.Count > 0 {
		totals.AvgAmount = totals.AmountKWh / float64(totals.Count)
	}
	return totals, nil
}

func (r *fakeEnergyRepo) BySource(userID string, since time.Time) ([]*repository.SourceTotals, error) {
	bySource := map[string]*repository.SourceTotals{}
	entries, _ := r.Since(userID, since)
	for _, e := range entries {
		row, ok := bySource[e.Source]
		if !ok {
			row = &repository.SourceTotals{Source: e.Source}
			bySource[e.Source] = row
		}
		row.AmountKWh += e.AmountKWh
		row.Cost += e.Cost
		row.CO2Emitted += e.CO2Emitted
		row.CO2Avoided += e.CO2Avoided
		row.Count++
	}
	var out []*repository.SourceTotals
	for _, row := range bySource {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AmountKWh > out[j].AmountKWh })
	return out, nil
}

func (r *fakeEnergyRepo) DeleteByUser(userID string) error {
	for id, e := range r.entries {
		if e.UserID == userID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *fakeEnergyRepo) Count() (int, error) { return len(r.entries), nil }

func (r *fakeEnergyRepo) Page(offset, limit int) ([]*model.EnergyEntry, error) {
	var all []*model.EnergyEntry
	for _, e := range r.entries {
		clone := *e
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeEnergyRepo) UpdateCO2(entryID string, emitted, avoided float64) error {
	e, ok := r.entries[entryID]
	if !ok {
		return repository.ErrEntryNotFound
	}
	e.CO2Emitted = emitted
	e.CO2Avoided = avoided
	return nil
}

func TestEnergyCreateDerivesCO2(t *testing.T) {
	svc := NewEnergyService(newFakeEnergyRepo(), nil, 0)

	entry, err := svc.Create(context.Background(), "u1", EntryInput{
		Source: model.SourceSolar,
		Amount: 100,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.CO2Emitted != 2.15 {
		t.Errorf("emitted = %v, want 2.15", entry.CO2Emitted)
	}
	if entry.CO2Avoided != 42.16 {
		t.Errorf("avoided = %v, want 42.16", entry.CO2Avoided)
	}
	if entry.Date.IsZero() {
		t.Error("zero date should default to now")
	}
}

func TestEnergyCreateValidation(t *testing.T) {
	svc := NewEnergyService(newFakeEnergyRepo(), nil, 0)
	ctx := context.Background()

	cases := []EntryInput{
		{Source: "plutonium", Amount: 10},
		{Source: model.SourceSolar, Amount: 0},
		{Source: model.SourceSolar, Amount: -5},
		{Source: model.SourceSolar, Amount: 1e7},
		{Source: model.SourceSolar, Amount: 10, Cost: -1},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, "u1", input)
		appErr := apperr.From(err)
		if appErr == nil || appErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Create(%+v): expected VALIDATION_ERROR, got %v", input, err)
		}
	}
}

func TestEnergyUpdateRederivesCO2(t *testing.T) {
	svc := NewEnergyService(newFakeEnergyRepo(), nil, 0)
	ctx := context.Background()

	entry, err := svc.Create(ctx, "u1", EntryInput{Source: model.SourceSolar, Amount: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, "u1", entry.ID, EntryInput{Source: model.SourceGrid, Amount: 50})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CO2Emitted != 22.155 {
		t.Errorf("emitted = %v, want 22.155", updated.CO2Emitted)
	}
	if updated.CO2Avoided != 0 {
		t.Errorf("grid should avoid nothing, got %v", updated.CO2Avoided)
	}
}

func TestEnergyOwnershipIsolation(t *testing.T) {
	svc := NewEnergyService(newFakeEnergyRepo(), nil, 0)
	ctx := context.Background()

	entry, err := svc.Create(ctx, "owner", EntryInput{Source: model.SourceWind, Amount: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.ByID("intruder", entry.ID); err == nil {
		t.Error("foreign entry should not be readable")
	}
	if err := svc.Delete(ctx, "intruder", entry.ID); err == nil {
		t.Error("foreign entry should not be deletable")
	}
	if _, err := svc.ByID("owner", entry.ID); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
}

func TestEnergyStats(t *testing.T) {
	repo := newFakeEnergyRepo()
	svc := NewEnergyService(repo, nil, 0)
	ctx := context.Background()

	now := time.Now()
	inputs := []EntryInput{
		{Source: model.SourceSolar, Amount: 100, Date: now.AddDate(0, 0, -1)},
		{Source: model.SourceGrid, Amount: 100, Date: now.AddDate(0, 0, -1)},
		{Source: model.SourceWind, Amount: 50, Date: now.AddDate(0, 0, -2)},
		// Outside the 7d window.
		{Source: model.SourceGrid, Amount: 999, Date: now.AddDate(0, 0, -30)},
	}
	for _, input := range inputs {
		if _, err := svc.Create(ctx, "u1", input); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, "u1", "7d")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Totals.AmountKWh != 250 {
		t.Errorf("total amount = %v, want 250", stats.Totals.AmountKWh)
	}
	if stats.RenewableAmount != 150 {
		t.Errorf("renewable amount = %v, want 150", stats.RenewableAmount)
	}
	if stats.RenewablePercentage != 60 {
		t.Errorf("renewable pct = %v, want 60", stats.RenewablePercentage)
	}
	if len(stats.Trend) != 2 {
		t.Errorf("trend days = %d, want 2", len(stats.Trend))
	}
	if len(stats.BySource) != 3 {
		t.Errorf("source rows = %d, want 3", len(stats.BySource))
	}

	_, err = svc.Stats(ctx, "u1", "2w")
	appErr := apperr.From(err)
	if appErr == nil || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR for unknown period, got %v", err)
	}
}

func TestEnergyChart(t *testing.T) {
	svc := NewEnergyService(newFakeEnergyRepo(), nil, 0)
	ctx := context.Background()

	day := time.Now().AddDate(0, 0, -1)
	for _, input := range []EntryInput{
		{Source: model.SourceSolar, Amount: 10, Date: day},
		{Source: model.SourceSolar, Amount: 5, Date: day},
		{Source: model.SourceGrid, Amount: 20, Date: day},
	} {
		if _, err := svc.Create(ctx, "u1", input); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	chart, err := svc.Chart(ctx, "u1", "7d")
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(chart) != 1 {
		t.Fatalf("chart days = %d, want 1", len(chart))
	}
	if chart[0].Sources[model.SourceSolar] != 15 {
		t.Errorf("solar = %v, want 15", chart[0].Sources[model.SourceSolar])
	}
	if chart[0].Total != 35 {
		t.Errorf("total = %v, want 35", chart[0].Total)
	}
}

func TestCO2Recalculate(t *testing.T) {
	repo := newFakeEnergyRepo()
	svc := NewEnergyService(repo, nil, 0)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, "u1", EntryInput{Source: model.SourceSolar, Amount: 10}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Corrupt two rows as if an old factor table wrote them.
	var corrupted int
	for _, e := range repo.entries {
		if corrupted == 2 {
			break
		}
		e.CO2Emitted = 99
		corrupted++
	}

	co2Service := NewCO2Service(repo, 3) // small batch to cross page boundaries

	result, err := co2Service.Recalculate(true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if result.Scanned != 7 || result.Updated != 2 || !result.DryRun {
		t.Errorf("dry run = %+v, want scanned 7 updated 2", result)
	}

	// Dry run must not write.
	still := 0
	for _, e := range repo.entries {
		if e.CO2Emitted == 99 {
			still++
		}
	}
	if still != 2 {
		t.Fatalf("dry run modified rows, %d corrupted remain", still)
	}

	result, err = co2Service.Recalculate(false)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if result.Updated != 2 {
		t.Errorf("updated = %d, want 2", result.Updated)
	}

	for _, e := range repo.entries {
		if e.CO2Emitted != 0.215 {
			t.Errorf("entry %s emitted = %v, want 0.215", e.ID, e.CO2Emitted)
		}
	}

	// A second run finds nothing to do.
	result, err = co2Service.Recalculate(false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("second run updated = %d, want 0", result.Updated)
	}
}
