package api

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/httputil"
)

// FestivalState is the lifecycle phase of a festival
type FestivalState string

const (
	FestivalCreated         FestivalState = "CREATED"
	FestivalSubmission      FestivalState = "SUBMISSION"
	FestivalAssignment      FestivalState = "ASSIGNMENT"
	FestivalReview          FestivalState = "REVIEW"
	FestivalScheduling      FestivalState = "SCHEDULING"
	FestivalFinalSubmission FestivalState = "FINAL_SUBMISSION"
	FestivalDecision        FestivalState = "DECISION"
	FestivalAnnounced       FestivalState = "ANNOUNCED"
)

var festivalStates = map[FestivalState]struct{}{
	FestivalCreated:         {},
	FestivalSubmission:      {},
	FestivalAssignment:      {},
	FestivalReview:          {},
	FestivalScheduling:      {},
	FestivalFinalSubmission: {},
	FestivalDecision:        {},
	FestivalAnnounced:       {},
}

// ParseFestivalState maps client input to a state. Blank or unknown values
// yield FestivalScheduling.
func ParseFestivalState(s string) FestivalState {
	state := FestivalState(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := festivalStates[state]; ok {
		return state
	}
	return FestivalScheduling
}

// PerformanceStatus tracks a performance through review
type PerformanceStatus string

const (
	PerformanceCreated   PerformanceStatus = "CREATED"
	PerformanceSubmitted PerformanceStatus = "SUBMITTED"
	PerformanceReviewed  PerformanceStatus = "REVIEWED"
	PerformanceApproved  PerformanceStatus = "APPROVED"
	PerformanceRejected  PerformanceStatus = "REJECTED"
	PerformanceScheduled PerformanceStatus = "SCHEDULED"
)

// DateLayout is the wire and storage format of Date
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE and TEXT columns
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Festival is an event that accepts performance submissions
type Festival struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Venue       string        `json:"venue"`
	State       FestivalState `json:"state"`
	CreatedAt   Date          `json:"createdAt"`
	StartDate   Date          `json:"startDate"`
	EndDate     Date          `json:"endDate"`
}

// Performance is an act submitted to a festival
type Performance struct {
	ID                    int64             `json:"id"`
	FestivalID            int64             `json:"festivalId"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	Genre                 string            `json:"genre"`
	Duration              int               `json:"duration"` // minutes
	Status                PerformanceStatus `json:"status"`
	MainArtist            string            `json:"mainArtist"`
	BandMembers           []string          `json:"bandMembers"`
	Setlist               []string          `json:"setlist"`
	MerchandiseItems      []string          `json:"merchandiseItems"`
	TechnicalRequirements []string          `json:"technicalRequirements"`
	// Preferred slots are RFC 3339 timestamps chosen by the artist
	PreferredRehearsalTimes   []time.Time `json:"preferredRehearsalTimes"`
	PreferredPerformanceSlots []time.Time `json:"preferredPerformanceSlots"`
	CreatedAt                 time.Time   `json:"createdAt"`
}

// PageRequest selects a zero-based page of results
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the number of rows skipped before the page, saturating at
// httputil.MaxPageOffset
func (p PageRequest) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > httputil.MaxPageOffset/p.Size {
		return httputil.MaxPageOffset
	}
	return p.Page * p.Size
}

// Page is a slice of results plus paging metadata
type Page[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Number           int   `json:"number"`
	Size             int   `json:"size"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	NumberOfElements int   `json:"numberOfElements"`
	Empty            bool  `json:"empty"`
}

// NewPage builds a page from one window of content and the total row count
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Number:           req.Page,
		Size:             req.Size,
		First:            req.Page == 0,
		Last:             req.Page+1 >= totalPages,
		NumberOfElements: len(content),
		Empty:            len(content) == 0,
	}
}

// UserStore persists accounts
type UserStore interface {
	auth.CredentialStore
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Create assigns ID and CreatedAt, returning storage.ErrConflict on a
	// duplicate username or email
	Create(ctx context.Context, user *auth.User) error
	List(ctx context.Context) ([]*auth.User, error)
}

// FestivalStore persists festivals
type FestivalStore interface {
	Create(ctx context.Context, festival *Festival) error
	Get(ctx context.Context, id int64) (*Festival, error)
	// List returns one page ordered by id and the total count
	List(ctx context.Context, page PageRequest) ([]*Festival, int64, error)
	// Search matches query case-insensitively against name, venue and description
	Search(ctx context.Context, query string, page PageRequest) ([]*Festival, int64, error)
}

// PerformanceStore persists performances
type PerformanceStore interface {
	Create(ctx context.Context, performance *Performance) error
	Get(ctx context.Context, id int64) (*Performance, error)
	ListByFestival(ctx context.Context, festivalID int64, page PageRequest) ([]*Performance, int64, error)
}
