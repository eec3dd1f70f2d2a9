package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/auth"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/config"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/logger"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/metrics"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/security"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "sid"

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]session.Data
}

func (m *memoryStore) Get(_ context.Context, id string) (*session.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &d, nil
}

func (m *memoryStore) Set(_ context.Context, id string, data *session.Data, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = *data
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type testEnv struct {
	t        *testing.T
	handler  http.Handler
	mock     sqlmock.Sqlmock
	sessions *memoryStore
	health   map[string]HealthCheck
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		t:        t,
		mock:     mock,
		sessions: &memoryStore{data: map[string]session.Data{}},
		health:   map[string]HealthCheck{},
	}
	env.handler = NewRouter(Deps{
		DB:           db,
		Auth:         auth.NewService(db, bcrypt.MinCost),
		Sessions:     session.NewManager(env.sessions, config.SessionConfig{CookieName: cookieName, TTL: time.Hour}),
		Metrics:      metrics.New(prometheus.NewRegistry()),
		HealthChecks: env.health,
	})
	return env
}

// loggedIn stores a session for userID and expects the identity reload query.
func (e *testEnv) loggedIn(userID int64) *http.Cookie {
	e.sessions.data["existing"] = session.Data{UserID: userID}
	e.mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(userID, "alice", "alice@example.com", "hash", time.Now()))
	return &http.Cookie{Name: cookieName, Value: "existing"}
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (e *testEnv) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookie)
}

// savedSession returns the session data referenced by the response cookie.
func (e *testEnv) savedSession(rec *httptest.ResponseRecorder) session.Data {
	e.t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			data, ok := e.sessions.data[c.Value]
			require.True(e.t, ok, "session %s not stored", c.Value)
			return data
		}
	}
	e.t.Fatal("response did not set a session cookie")
	return session.Data{}
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var page map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func TestProtectedRouteRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/cart", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fcart", rec.Header().Get("Location"))
	assert.Equal(t, []session.Flash{{Category: session.FlashInfo, Message: "Please log in to access this page."}}, env.savedSession(rec).Flashes)
}

func TestDeletedIdentityIsTreatedAsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.data["existing"] = session.Data{UserID: 9}
	env.mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	rec := env.get("/orders", &http.Cookie{Name: cookieName, Value: "existing"})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Forders", rec.Header().Get("Location"))
	assert.Zero(t, env.savedSession(rec).UserID)
	_, stale := env.sessions.data["existing"]
	assert.False(t, stale)
}

func TestIdentityLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.data["existing"] = session.Data{UserID: 9}
	env.mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).WithArgs(int64(9)).WillReturnError(errors.New("connection reset"))

	rec := env.get("/orders", &http.Cookie{Name: cookieName, Value: "existing"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	expectUser := func(env *testEnv) {
		env.mock.ExpectQuery(`FROM users\s+WHERE username = \$1`).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "alice", "alice@example.com", hash, time.Now()))
	}

	t.Run("honours next", func(t *testing.T) {
		env := newTestEnv(t)
		expectUser(env)

		rec := env.postForm("/login?next=%2Fcart", url.Values{"username": {"alice"}, "password": {"s3cret"}}, nil)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/cart", rec.Header().Get("Location"))
		saved := env.savedSession(rec)
		assert.Equal(t, int64(1), saved.UserID)
		assert.Equal(t, "Login successful!", saved.Flashes[0].Message)
	})

	t.Run("ignores off-site next", func(t *testing.T) {
		env := newTestEnv(t)
		expectUser(env)

		rec := env.postForm("/login?next=%2F%2Fevil.example", url.Values{"username": {"alice"}, "password": {"s3cret"}}, nil)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("ignores next hiding a host behind a tab", func(t *testing.T) {
		env := newTestEnv(t)
		expectUser(env)

		rec := env.postForm("/login?next=%2F%09%2Fevil.example", url.Values{"username": {"alice"}, "password": {"s3cret"}}, nil)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("wrong password re-renders with notice", func(t *testing.T) {
		env := newTestEnv(t)
		expectUser(env)

		rec := env.postForm("/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		page := decodePage(t, rec)
		assert.Equal(t, "login", page["page"])
		flashes := page["flashes"].([]any)
		require.Len(t, flashes, 1)
		assert.Equal(t, "Invalid username or password", flashes[0].(map[string]any)["message"])
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.postForm("/login", url.Values{"username": {"alice"}}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}

func TestSignup(t *testing.T) {
	form := url.Values{
		"username": {"alice"},
		"email":    {"alice@example.com"},
		"password": {"s3cret"},
	}
	exists := func(v bool) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"exists"}).AddRow(v)
	}
	flashMessage := func(t *testing.T, rec *httptest.ResponseRecorder) string {
		t.Helper()
		flashes := decodePage(t, rec)["flashes"].([]any)
		require.Len(t, flashes, 1)
		return flashes[0].(map[string]any)["message"].(string)
	}

	t.Run("creates account and sends to login", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(`WHERE username = \$1`).WithArgs("alice").WillReturnRows(exists(false))
		env.mock.ExpectQuery(`WHERE email = \$1`).WithArgs("alice@example.com").WillReturnRows(exists(false))
		env.mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("alice", "alice@example.com", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "alice", "alice@example.com", "hash", time.Now()))

		rec := env.postForm("/signup", form, nil)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		saved := env.savedSession(rec)
		assert.Zero(t, saved.UserID)
		assert.Equal(t, []session.Flash{{Category: session.FlashSuccess, Message: "Account created successfully! Please login."}}, saved.Flashes)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(`WHERE username = \$1`).WithArgs("alice").WillReturnRows(exists(true))

		rec := env.postForm("/signup", form, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Username already exists", flashMessage(t, rec))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(`WHERE username = \$1`).WithArgs("alice").WillReturnRows(exists(false))
		env.mock.ExpectQuery(`WHERE email = \$1`).WithArgs("alice@example.com").WillReturnRows(exists(true))

		rec := env.postForm("/signup", form, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		page := decodePage(t, rec)
		assert.Equal(t, "signup", page["page"])
		assert.Equal(t, "Email already exists", flashMessage(t, rec))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("invalid email", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.postForm("/signup", url.Values{
			"username": {"alice"},
			"email":    {"not-an-email"},
			"password": {"s3cret"},
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "email must be a valid email address", flashMessage(t, rec))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}

func TestAddToCart(t *testing.T) {
	t.Run("redirects to store with notice", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)
		env.mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(int64(1), int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(1))

		rec := env.get("/add_to_cart/3", cookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/store", rec.Header().Get("Location"))
		assert.Equal(t, "Item added to cart!", env.savedSession(rec).Flashes[0].Message)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)
		env.mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(int64(1), int64(999)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}))

		rec := env.get("/add_to_cart/999", cookie)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("account deleted mid-session goes back to login", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(7)
		env.mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(int64(7), int64(3)).
			WillReturnError(&pq.Error{Code: "23503", Constraint: "cart_items_user_id_fkey"})

		rec := env.get("/add_to_cart/3", cookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Zero(t, env.savedSession(rec).UserID)
	})

	t.Run("non-numeric id is 404", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)

		rec := env.get("/add_to_cart/abc", cookie)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRemoveFromCartAbsentLine(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.loggedIn(1)
	env.mock.ExpectExec(`DELETE FROM cart_items`).
		WithArgs(int64(1), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := env.get("/remove_from_cart/5", cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))
	assert.Empty(t, env.sessions.data["existing"].Flashes)
}

func TestConfirmOrder(t *testing.T) {
	lockQuery := `FOR UPDATE OF c`
	lineColumns := []string{"product_id", "quantity", "price"}

	t.Run("empty cart warns and returns to store", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery(lockQuery).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows(lineColumns))
		env.mock.ExpectRollback()

		rec := env.get("/confirm_order", cookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/store", rec.Header().Get("Location"))
		assert.Equal(t, session.Flash{Category: session.FlashWarning, Message: "Your cart is empty"}, env.savedSession(rec).Flashes[0])
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("success names the order", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery(lockQuery).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(lineColumns).AddRow(int64(3), 2, "10.00"))
		env.mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "order_date", "status"}).AddRow(int64(100), time.Now(), "Processing"))
		env.mock.ExpectQuery(`INSERT INTO order_items`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		env.mock.ExpectExec(`DELETE FROM cart_items`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.mock.ExpectCommit()

		rec := env.get("/confirm_order", cookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/orders", rec.Header().Get("Location"))
		assert.Equal(t, "Order #100 confirmed successfully!", env.savedSession(rec).Flashes[0].Message)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("storage failure surfaces a generic notice", func(t *testing.T) {
		env := newTestEnv(t)
		cookie := env.loggedIn(1)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery(lockQuery).WillReturnError(errors.New("connection refused"))
		env.mock.ExpectRollback()

		rec := env.get("/confirm_order", cookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/cart", rec.Header().Get("Location"))
		assert.Equal(t, session.FlashDanger, env.savedSession(rec).Flashes[0].Category)
	})
}

func TestStoreIsPublic(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`FROM products\s+ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "description", "image"}).
			AddRow(int64(1), "Organic Olive Oil", "24.99", "oil", "olive-oil.jpg"))

	rec := env.get("/store", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, "store", page["page"])
	products := page["data"].(map[string]any)["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "24.99", products[0].(map[string]any)["price"])
}

func TestCartPage(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.loggedIn(1)
	env.mock.ExpectQuery(`FROM cart_items c\s+JOIN products p`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "image", "quantity"}).
			AddRow(int64(3), "Organic Olive Oil", "24.99", "olive-oil.jpg", 2).
			AddRow(int64(4), "Artisan Coffee Blend", "14.95", "coffee.jpg", 1))

	rec := env.get("/cart", cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, "cart", page["page"])
	assert.Equal(t, "alice", page["user"].(map[string]any)["username"])
	cart := page["data"].(map[string]any)
	assert.Equal(t, "64.93", cart["total"])
	items := cart["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "49.98", items[0].(map[string]any)["total"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestOrdersPage(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.loggedIn(1)
	env.mock.ExpectQuery(`FROM orders\s+WHERE user_id = \$1\s+ORDER BY order_date DESC`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "order_date", "total_amount", "status"}).
			AddRow(int64(100), int64(1), time.Now(), "34.93", "Processing"))
	env.mock.ExpectQuery(`FROM order_items i`).
		WithArgs("{100}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "quantity", "price"}).
			AddRow(int64(1), int64(100), int64(3), "Organic Olive Oil", 2, "12.47").
			AddRow(int64(2), int64(100), int64(4), "Artisan Coffee Blend", 1, "9.99"))

	rec := env.get("/orders", cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, "orders", page["page"])
	orders := page["data"].(map[string]any)["orders"].([]any)
	require.Len(t, orders, 1)
	order := orders[0].(map[string]any)
	assert.Equal(t, float64(100), order["id"])
	assert.Equal(t, "34.93", order["total_amount"])
	assert.Equal(t, "Processing", order["status"])
	items := order["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Organic Olive Oil", items[0].(map[string]any)["product_name"])
	assert.Equal(t, "12.47", items[0].(map[string]any)["price"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPanicIsLoggedAndMeasured(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	handler := NewRouter(Deps{
		Logger:  logger.New(logger.Options{Output: &buf, Level: zerolog.DebugLevel}),
		Metrics: metrics.New(reg),
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { panic("boom") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := map[string]map[string]any{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		entries[entry["message"].(string)] = entry
	}
	require.Contains(t, entries, "panic.recovered")
	assert.Equal(t, "req-42", entries["panic.recovered"]["request_id"])
	require.Contains(t, entries, "request.complete")
	assert.Equal(t, float64(http.StatusInternalServerError), entries["request.complete"]["status"])

	count, err := testutil.GatherAndCount(reg, "http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.loggedIn(1)

	rec := env.get("/logout", cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	saved := env.savedSession(rec)
	assert.Zero(t, saved.UserID)
	assert.Equal(t, "You have been logged out", saved.Flashes[0].Message)
	_, stale := env.sessions.data["existing"]
	assert.False(t, stale)
}

func TestLoginPageRedirectsWhenAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.loggedIn(1)

	rec := env.get("/login", cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.health["postgres"] = func(context.Context) error { return nil }
	env.health["redis"] = func(context.Context) error { return errors.New("down") }

	rec := env.get("/healthz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "ok", report["postgres"])
	assert.Equal(t, "unavailable", report["redis"])
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                     "/",
		"/cart":                "/cart",
		"/orders?x=1":          "/orders?x=1",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"https://evil.example": "/",
		"/\t/evil.example":     "/",
		"/\n/evil.example":     "/",
		"/cart\\..":            "/",
		"/%09/evil.example":    "/%09/evil.example",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeNext(in), in)
	}
}
