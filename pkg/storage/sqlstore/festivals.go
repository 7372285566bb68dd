package sqlstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/festival/pkg/api"
	"github.com/platinummonkey/festival/pkg/observability"
)

// FestivalStore persists festivals
type FestivalStore struct {
	db      DBTX
	metrics *observability.Metrics
	now     func() time.Time
}

// NewFestivalStore returns a FestivalStore bound to db. metrics may be nil.
func NewFestivalStore(db DBTX, metrics *observability.Metrics) *FestivalStore {
	return &FestivalStore{db: db, metrics: metrics, now: time.Now}
}

const festivalColumns = `id, name, description, venue, state, created_at, start_date, end_date`

func scanFestival(row rowScanner) (*api.Festival, error) {
	var (
		f           api.Festival
		description *string
		state       string
	)
	if err := row.Scan(&f.ID, &f.Name, &description, &f.Venue, &state, &f.CreatedAt, &f.StartDate, &f.EndDate); err != nil {
		return nil, err
	}
	if description != nil {
		f.Description = *description
	}
	f.State = api.FestivalState(state)
	return &f, nil
}

// Create inserts festival, assigning ID and CreatedAt
func (s *FestivalStore) Create(ctx context.Context, festival *api.Festival) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("festival_create", start, err) }()

	if festival.State == "" {
		festival.State = api.FestivalCreated
	}
	festival.CreatedAt = api.DateOf(s.now())

	var description *string
	if festival.Description != "" {
		description = &festival.Description
	}

	query := `
		INSERT INTO festivals (name, description, venue, state, created_at, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		festival.Name,
		description,
		festival.Venue,
		string(festival.State),
		festival.CreatedAt,
		festival.StartDate,
		festival.EndDate,
	).Scan(&festival.ID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// Get returns the festival with id or storage.ErrNotFound
func (s *FestivalStore) Get(ctx context.Context, id int64) (festival *api.Festival, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("festival_get", start, ignoreNotFound(err)) }()

	query := `SELECT ` + festivalColumns + ` FROM festivals WHERE id = $1`
	festival, err = scanFestival(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return festival, nil
}

// List returns one page of festivals ordered by id and the total count
func (s *FestivalStore) List(ctx context.Context, page api.PageRequest) (festivals []*api.Festival, total int64, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("festival_list", start, err) }()

	return s.page(ctx, "", nil, page)
}

// Search returns one page of festivals whose name, venue or description
// contains query, ignoring case
func (s *FestivalStore) Search(ctx context.Context, query string, page api.PageRequest) (festivals []*api.Festival, total int64, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOp("festival_search", start, err) }()

	where := `WHERE LOWER(name) LIKE $1 ESCAPE '\'
		OR LOWER(venue) LIKE $1 ESCAPE '\'
		OR LOWER(COALESCE(description, '')) LIKE $1 ESCAPE '\'`
	return s.page(ctx, where, []any{likePattern(strings.TrimSpace(query))}, page)
}

func (s *FestivalStore) page(ctx context.Context, where string, args []any, page api.PageRequest) ([]*api.Festival, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM festivals `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	n := len(args)
	query := `SELECT ` + festivalColumns + ` FROM festivals ` + where +
		` ORDER BY id ASC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	festivals := make([]*api.Festival, 0, page.Size)
	for rows.Next() {
		f, err := scanFestival(rows)
		if err != nil {
			return nil, 0, mapError(err)
		}
		festivals = append(festivals, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return festivals, total, nil
}
