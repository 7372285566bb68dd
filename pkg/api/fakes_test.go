package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/middleware"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var errStoreDown = errors.New("store down")

type memoryUsers struct {
	mu     sync.Mutex
	byName map[string]*auth.User
	nextID int64
	err    error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byName: map[string]*auth.User{}}
}

func (s *memoryUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.byName[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memoryUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.byName[username]
	return ok, nil
}

func (s *memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, u := range s.byName {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryUsers) Create(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.byName[user.Username]; ok {
		return storage.ErrConflict
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	copied := *user
	s.byName[user.Username] = &copied
	return nil
}

func (s *memoryUsers) List(ctx context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*auth.User, 0, len(s.byName))
	for _, u := range s.byName {
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryUsers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byName)
}

type memoryFestivals struct {
	mu        sync.Mutex
	festivals []*Festival
	err       error
	lastPage  PageRequest
	lastQuery string
}

func (s *memoryFestivals) Create(ctx context.Context, f *Festival) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.festivals {
		if existing.Name == f.Name {
			return storage.ErrConflict
		}
	}
	f.ID = int64(len(s.festivals) + 1)
	f.CreatedAt = DateOf(time.Now())
	copied := *f
	s.festivals = append(s.festivals, &copied)
	return nil
}

func (s *memoryFestivals) Get(ctx context.Context, id int64) (*Festival, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, f := range s.festivals {
		if f.ID == id {
			copied := *f
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryFestivals) List(ctx context.Context, page PageRequest) ([]*Festival, int64, error) {
	return s.Search(ctx, "", page)
}

func (s *memoryFestivals) Search(ctx context.Context, query string, page PageRequest) ([]*Festival, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPage = page
	s.lastQuery = query
	if s.err != nil {
		return nil, 0, s.err
	}
	q := strings.ToLower(query)
	var matched []*Festival
	for _, f := range s.festivals {
		if q == "" ||
			strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.Venue), q) ||
			strings.Contains(strings.ToLower(f.Description), q) {
			matched = append(matched, f)
		}
	}
	return window(matched, page), int64(len(matched)), nil
}

func (s *memoryFestivals) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.festivals)
}

type memoryPerformances struct {
	mu           sync.Mutex
	performances []*Performance
	err          error
}

func (s *memoryPerformances) Create(ctx context.Context, p *Performance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.performances {
		if existing.FestivalID == p.FestivalID && existing.Name == p.Name {
			return storage.ErrConflict
		}
	}
	p.ID = int64(len(s.performances) + 1)
	p.CreatedAt = time.Now().UTC()
	copied := *p
	s.performances = append(s.performances, &copied)
	return nil
}

func (s *memoryPerformances) Get(ctx context.Context, id int64) (*Performance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, p := range s.performances {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryPerformances) ListByFestival(ctx context.Context, festivalID int64, page PageRequest) ([]*Performance, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	var matched []*Performance
	for _, p := range s.performances {
		if p.FestivalID == festivalID {
			matched = append(matched, p)
		}
	}
	return window(matched, page), int64(len(matched)), nil
}

func window[T any](items []T, page PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// testEnv is a server behind the same authentication chain cmd/festival installs
type testEnv struct {
	users        *memoryUsers
	festivals    *memoryFestivals
	performances *memoryPerformances
	tokens       *auth.TokenService
	hasher       auth.PasswordHasher
	server       *Server
	handler      http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: testSecret, Validity: time.Hour})
	require.NoError(t, err)

	env := &testEnv{
		users:        newMemoryUsers(),
		festivals:    &memoryFestivals{},
		performances: &memoryPerformances{},
		tokens:       tokens,
		hasher:       auth.NewBcryptHasher(bcrypt.MinCost),
	}
	logger := observability.NopLogger()
	env.server = NewServer(Dependencies{
		Users:        env.users,
		Festivals:    env.festivals,
		Performances: env.performances,
		Tokens:       tokens,
		Hasher:       env.hasher,
		Logger:       logger,
	})

	filter := middleware.NewAuthFilter(tokens, env.users, logger, nil)
	gate := middleware.NewPolicyGate(middleware.NewPolicy(middleware.DefaultRules(), false), auth.NewAuditLogger(logger), nil)
	env.handler = filter.Handler(gate.Handler(env.server))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewReader([]byte(raw))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the API and returns its token
func (e *testEnv) register(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{Username: username, Password: password}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func (e *testEnv) seedFestival(t *testing.T, name, venue string) *Festival {
	t.Helper()
	f := &Festival{
		Name:      name,
		Venue:     venue,
		State:     FestivalScheduling,
		StartDate: NewDate(2026, 7, 1),
		EndDate:   NewDate(2026, 7, 3),
	}
	require.NoError(t, e.festivals.Create(context.Background(), f))
	return f
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func httptestServe(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}
