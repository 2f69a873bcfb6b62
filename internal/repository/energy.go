package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/greencore/api/internal/model"
)

const (
	EntrySortDate   = "date"
	EntrySortAmount = "amount_kwh"
	EntrySortCost   = "cost"
	EntrySortSource = "source"
)

var (
	ErrEntryNotFound = errors.New("energy entry not found")
)

// EntryFilter narrows a user's entry listing.
type EntryFilter struct {
	Source    string
	From      *time.Time
	To        *time.Time
	Search    string
	SortBy    string
	SortAsc   bool
	Page      int
	Limit     int
}

// SourceTotals is the per-source aggregation row for the stats endpoint.
type SourceTotals struct {
	Source     string  `db:"source" json:"source"`
	AmountKWh  float64 `db:"amount_kwh" json:"amount"`
	Cost       float64 `db:"cost" json:"cost"`
	CO2Emitted float64 `db:"co2_emitted" json:"co2Emitted"`
	CO2Avoided float64 `db:"co2_avoided" json:"co2Avoided"`
	Count      int     `db:"count" json:"count"`
}

// Totals is the overall aggregation row for the stats endpoint.
type Totals struct {
	AmountKWh  float64 `db:"amount_kwh" json:"totalAmount"`
	Cost       float64 `db:"cost" json:"totalCost"`
	CO2Emitted float64 `db:"co2_emitted" json:"totalCo2Emitted"`
	CO2Avoided float64 `db:"co2_avoided" json:"totalCo2Avoided"`
	Count      int     `db:"count" json:"count"`
	AvgAmount  float64 `db:"avg_amount" json:"avgAmount"`
}

type EnergyRepository interface {
	Create(entry *model.EnergyEntry) error
	ByID(userID, entryID string) (*model.EnergyEntry, error)
	Update(entry *model.EnergyEntry) error
	Delete(userID, entryID string) error
	List(userID string, filter EntryFilter) ([]*model.EnergyEntry, int, error)
	Recent(userID string, limit int) ([]*model.EnergyEntry, error)
	Since(userID string, since time.Time) ([]*model.EnergyEntry, error)
	Totals(userID string, since time.Time) (*Totals, error)
	BySource(userID string, since time.Time) ([]*SourceTotals, error)
	DeleteByUser(userID string) error
	Count() (int, error)
	// Page and UpdateCO2 support offline bulk recomputation.
	Page(offset, limit int) ([]*model.EnergyEntry, error)
	UpdateCO2(entryID string, emitted, avoided float64) error
}

type energyRepository struct {
	db *sqlx.DB
}

func NewEnergyRepository(db *sqlx.DB) EnergyRepository {
	return &energyRepository{db: db}
}

func (r *energyRepository) Create(entry *model.EnergyEntry) error {
	query := `INSERT INTO energy_entries (id, user_id, source, amount_kwh, cost, date, description, location, notes,
	              co2_emitted, co2_avoided, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(query,
		entry.ID, entry.UserID, entry.Source, entry.AmountKWh, entry.Cost, entry.Date,
		entry.Description, entry.Location, entry.Notes, entry.CO2Emitted, entry.CO2Avoided,
		entry.CreatedAt, entry.UpdatedAt,
	)
	return err
}

func (r *energyRepository) ByID(userID, entryID string) (*model.EnergyEntry, error) {
	entry := &model.EnergyEntry{}
	query := `SELECT * FROM energy_entries WHERE id = $1 AND user_id = $2`

	err := r.db.Get(entry, query, entryID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}

	return entry, err
}

func (r *energyRepository) Update(entry *model.EnergyEntry) error {
	entry.UpdatedAt = time.Now()

	query := `UPDATE energy_entries
	          SET source = $1, amount_kwh = $2, cost = $3, date = $4, description = $5, location = $6,
	              notes = $7, co2_emitted = $8, co2_avoided = $9, updated_at = $10
	          WHERE id = $11 AND user_id = $12`

	result, err := r.db.Exec(query,
		entry.Source, entry.AmountKWh, entry.Cost, entry.Date, entry.Description, entry.Location,
		entry.Notes, entry.CO2Emitted, entry.CO2Avoided, entry.UpdatedAt, entry.ID, entry.UserID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func (r *energyRepository) Delete(userID, entryID string) error {
	query := `DELETE FROM energy_entries WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, entryID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func (r *energyRepository) List(userID string, filter EntryFilter) ([]*model.EnergyEntry, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Source != "" {
		where = append(where, "source = "+arg(filter.Source))
	}
	if filter.From != nil {
		where = append(where, "date >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "date <= "+arg(*filter.To))
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		p1, p2, p3, p4 := arg(like), arg(like), arg(like), arg(like)
		where = append(where, "(description LIKE "+p1+" OR location LIKE "+p2+" OR notes LIKE "+p3+" OR source LIKE "+p4+")")
	}

	clause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM energy_entries WHERE `+clause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Sort column is validated against a fixed set, never interpolated raw.
	orderBy := EntrySortDate
	switch filter.SortBy {
	case EntrySortAmount, EntrySortCost, EntrySortSource, EntrySortDate:
		orderBy = filter.SortBy
	}
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var entries []*model.EnergyEntry
	query := `SELECT * FROM energy_entries WHERE ` + clause +
		` ORDER BY ` + orderBy + ` ` + direction +
		` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	err = r.db.Select(&entries, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *energyRepository) Recent(userID string, limit int) ([]*model.EnergyEntry, error) {
	var entries []*model.EnergyEntry
	query := `SELECT * FROM energy_entries WHERE user_id = $1 ORDER BY date DESC LIMIT $2`

	err := r.db.Select(&entries, query, userID, limit)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *energyRepository) Since(userID string, since time.Time) ([]*model.EnergyEntry, error) {
	var entries []*model.EnergyEntry
	query := `SELECT * FROM energy_entries WHERE user_id = $1 AND date >= $2 ORDER BY date ASC`

	err := r.db.Select(&entries, query, userID, since)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *energyRepository) Totals(userID string, since time.Time) (*Totals, error) {
	totals := &Totals{}
	query := `SELECT COALESCE(SUM(amount_kwh), 0) AS amount_kwh,
	                 COALESCE(SUM(cost), 0) AS cost,
	                 COALESCE(SUM(co2_emitted), 0) AS co2_emitted,
	                 COALESCE(SUM(co2_avoided), 0) AS co2_avoided,
	                 COUNT(*) AS count,
	                 COALESCE(AVG(amount_kwh), 0) AS avg_amount
	          FROM energy_entries WHERE user_id = $1 AND date >= $2`

	err := r.db.Get(totals, query, userID, since)
	if err != nil {
		return nil, err
	}

	return totals, nil
}

func (r *energyRepository) BySource(userID string, since time.Time) ([]*SourceTotals, error) {
	var rows []*SourceTotals
	query := `SELECT source,
	                 COALESCE(SUM(amount_kwh), 0) AS amount_kwh,
	                 COALESCE(SUM(cost), 0) AS cost,
	                 COALESCE(SUM(co2_emitted), 0) AS co2_emitted,
	                 COALESCE(SUM(co2_avoided), 0) AS co2_avoided,
	                 COUNT(*) AS count
	          FROM energy_entries WHERE user_id = $1 AND date >= $2
	          GROUP BY source
	          ORDER BY amount_kwh DESC`

	err := r.db.Select(&rows, query, userID, since)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *energyRepository) DeleteByUser(userID string) error {
	query := `DELETE FROM energy_entries WHERE user_id = $1`
	_, err := r.db.Exec(query, userID)
	return err
}

func (r *energyRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM energy_entries`).Scan(&count)
	return count, err
}

func (r *energyRepository) Page(offset, limit int) ([]*model.EnergyEntry, error) {
	var entries []*model.EnergyEntry
	query := `SELECT * FROM energy_entries ORDER BY id LIMIT $1 OFFSET $2`

	err := r.db.Select(&entries, query, limit, offset)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *energyRepository) UpdateCO2(entryID string, emitted, avoided float64) error {
	query := `UPDATE energy_entries SET co2_emitted = $1, co2_avoided = $2 WHERE id = $3`
	_, err := r.db.Exec(query, emitted, avoided, entryID)
	return err
}
