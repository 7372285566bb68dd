package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/festival/pkg/api"
	"github.com/platinummonkey/festival/pkg/observability"
)

// PerformanceStore persists performances. List-valued fields, including the
// preferred time slots, are stored as JSON arrays in text columns.
type PerformanceStore struct {
	db      DBTX
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPerformanceStore returns a PerformanceStore bound to db. metrics may be nil.
func NewPerformanceStore(db DBTX, metrics *observability.Metrics) *PerformanceStore {
	return &PerformanceStore{db: db, metrics: metrics, now: time.Now}
}

const performanceColumns = `id, festival_id, name, description, genre, duration_minutes, status, main_artist,
	band_members, setlist, merchandise_items, technical_requirements,
	preferred_rehearsal_times, preferred_performance_slots, created_at`

func scanPerformance(row rowScanner) (*api.Performance, error) {
	var (
		p                                            api.Performance
		description                                  *string
		status                                       string
		bandMembers, setlist, merchandise, technical string
		rehearsals, slots                            string
	)
	err := row.Scan(&p.ID, &p.FestivalID, &p.Name, &description, &p.Genre, &p.Duration, &status, &p.MainArtist,
		&bandMembers, &setlist, &merchandise, &technical, &rehearsals, &slots, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if description != nil {
		p.Description = *description
	}
	p.Status = api.PerformanceStatus(status)

	for _, col := range []struct {
		raw  string
		dest *[]string
	}{
		{bandMembers, &p.BandMembers},
		{setlist, &p.Setlist},
		{merchandise, &p.MerchandiseItems},
		{technical, &p.TechnicalRequirements},
	} {
		if err := decodeList(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	if err := decodeList(rehearsals, &p.PreferredRehearsalTimes); err != nil {
		return nil, err
	}
	if err := decodeList(slots, &p.PreferredPerformanceSlots); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts performance, assigning ID, CreatedAt and the initial status
func (s *PerformanceStore) Create(ctx context.Context, performance *api.Performance) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("performance_create", start, err) }()

	if performance.Status == "" {
		performance.Status = api.PerformanceCreated
	}
	performance.CreatedAt = s.now().UTC()

	lists := make([]string, 0, 6)
	for _, l := range [][]string{
		performance.BandMembers,
		performance.Setlist,
		performance.MerchandiseItems,
		performance.TechnicalRequirements,
	} {
		encoded, err := encodeList(l)
		if err != nil {
			return err
		}
		lists = append(lists, encoded)
	}
	for _, l := range [][]time.Time{
		performance.PreferredRehearsalTimes,
		performance.PreferredPerformanceSlots,
	} {
		encoded, err := encodeList(l)
		if err != nil {
			return err
		}
		lists = append(lists, encoded)
	}

	var description *string
	if performance.Description != "" {
		description = &performance.Description
	}

	query := `
		INSERT INTO performances (festival_id, name, description, genre, duration_minutes, status, main_artist,
			band_members, setlist, merchandise_items, technical_requirements,
			preferred_rehearsal_times, preferred_performance_slots, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		performance.FestivalID,
		performance.Name,
		description,
		performance.Genre,
		performance.Duration,
		string(performance.Status),
		performance.MainArtist,
		lists[0], lists[1], lists[2], lists[3],
		lists[4], lists[5],
		performance.CreatedAt,
	).Scan(&performance.ID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// Get returns the performance with id or storage.ErrNotFound
func (s *PerformanceStore) Get(ctx context.Context, id int64) (performance *api.Performance, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("performance_get", start, ignoreNotFound(err)) }()

	query := `SELECT ` + performanceColumns + ` FROM performances WHERE id = $1`
	performance, err = scanPerformance(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return performance, nil
}

// ListByFestival returns one page of a festival's performances ordered by id
func (s *PerformanceStore) ListByFestival(ctx context.Context, festivalID int64, page api.PageRequest) (performances []*api.Performance, total int64, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("performance_list", start, err) }()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM performances WHERE festival_id = $1`, festivalID).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := `SELECT ` + performanceColumns + ` FROM performances
		WHERE festival_id = $1
		ORDER BY id ASC LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, festivalID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	performances = make([]*api.Performance, 0, page.Size)
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, 0, mapError(err)
		}
		performances = append(performances, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return performances, total, nil
}

func encodeList[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList[T any](raw string, dest *[]T) error {
	*dest = []T{}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to decode list column: %w", err)
	}
	return nil
}
