package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joacominatel/ciphersql/internal/app"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/hint"
	"github.com/joacominatel/ciphersql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

type fixture struct {
	driver  *testutil.FakeDriver
	store   *assignment.SQLiteStore
	handler http.Handler
}

func setup(t *testing.T, driver *testutil.FakeDriver) *fixture {
	t.Helper()
	store, err := assignment.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := testutil.NewTestLogger(t)
	svc := app.NewService(driver, store, nil, app.Options{
		Executor: gateway.ExecutorOptions{
			AcquireTimeout:   100 * time.Millisecond,
			StatementTimeout: 200 * time.Millisecond,
		},
		Logger: logger,
	})
	srv := New(svc, Config{CORSOrigins: []string{"http://localhost:5173"}, Logger: logger})
	return &fixture{driver: driver, store: store, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func employeesDriver() *testutil.FakeDriver {
	return &testutil.FakeDriver{QueryFunc: func(_ context.Context, stmt string) (*database.RawResult, error) {
		switch {
		case strings.Contains(stmt, "nonexistent_table"):
			return nil, &database.StatementError{Code: "42P01", Message: `relation "nonexistent_table" does not exist`}
		case strings.HasPrefix(stmt, "SELECT salary, name"):
			return testutil.Result([]string{"salary", "name"}, []any{int32(82000), "Alice"}), nil
		default:
			return testutil.Result([]string{"name", "salary"}, []any{"Alice", int32(82000)}), nil
		}
	}}
}

// =============================================================================
// POST /api/execute
// =============================================================================

func TestExecute_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantError   string
		wantReason  string
		wantCorrect bool
		wantQueried bool
	}{
		{
			name:        "graded select",
			body:        `{"query":"SELECT name, salary FROM employees WHERE salary > 75000","expectedColumns":["name","salary"]}`,
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantQueried: true,
		},
		{
			name:       "drop table",
			body:       `{"query":"DROP TABLE employees"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Only safe SELECT queries are allowed",
			wantReason: gateway.ReasonNotRead,
		},
		{
			name:       "multiple statements",
			body:       `{"query":"SELECT 1; SELECT 2"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Only safe SELECT queries are allowed",
			wantReason: "multiple statements forbidden",
		},
		{
			name:       "blank query",
			body:       `{"query":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Query cannot be empty",
		},
		{
			name:       "missing query",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Query cannot be empty",
		},
		{
			name:        "missing relation",
			body:        `{"query":"SELECT * FROM nonexistent_table"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   `relation "nonexistent_table" does not exist`,
			wantQueried: true,
		},
		{
			name:        "order independent",
			body:        `{"query":"SELECT salary, name FROM employees","expectedColumns":["name","salary"]}`,
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantQueried: true,
		},
		{
			name:        "malformed expected columns",
			body:        `{"query":"SELECT name, salary FROM employees","expectedColumns":"name,salary"}`,
			wantStatus:  http.StatusOK,
			wantCorrect: false,
			wantQueried: true,
		},
		{
			name:       "invalid json",
			body:       `{"query":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, employeesDriver())

			rec := f.do(t, http.MethodPost, "/api/execute", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decode(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, body["reason"])
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantCorrect, body["isCorrect"])
				assert.Contains(t, body, "columns")
				assert.Contains(t, body, "rows")
				assert.EqualValues(t, 1, body["rowCount"])
			}
			assert.Equal(t, tt.wantQueried, len(f.driver.Statements()) > 0)
			assert.True(t, f.driver.Balanced())
		})
	}
}

func TestExecute_SuccessBody(t *testing.T) {
	f := setup(t, employeesDriver())

	rec := f.do(t, http.MethodPost, "/api/execute", `{"query":"SELECT name, salary FROM employees;"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Columns   []string         `json:"columns"`
		Rows      []map[string]any `json:"rows"`
		RowCount  int              `json:"rowCount"`
		IsCorrect bool             `json:"isCorrect"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"name", "salary"}, resp.Columns)
	assert.Equal(t, "Alice", resp.Rows[0]["name"])
	assert.EqualValues(t, 82000, resp.Rows[0]["salary"])
	assert.False(t, resp.IsCorrect)
	assert.Equal(t, []string{"SELECT name, salary FROM employees"}, f.driver.Statements())
}

func TestExecute_AssignmentGrading(t *testing.T) {
	f := setup(t, employeesDriver())
	a := assignment.Defaults()[1]
	a.ID = "high-earners"
	require.NoError(t, f.store.Replace(context.Background(), []assignment.Assignment{a}))

	rec := f.do(t, http.MethodPost, "/api/execute",
		`{"query":"SELECT name, salary FROM employees","assignmentId":"high-earners"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isCorrect"])
}

func TestExecute_Timeout(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{QueryFunc: testutil.BlockUntilDone})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"query":"SELECT pg_sleep(10)"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "timed out")
	assert.True(t, f.driver.Balanced())
}

func TestExecute_ServerSideTimeout(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{QueryFunc: func(context.Context, string) (*database.RawResult, error) {
		return nil, &database.StatementError{Code: "57014", Message: "canceling statement due to statement timeout", Timeout: true}
	}})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"query":"SELECT 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "timed out")
}

func TestExecute_PoolExhausted(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{AcquireErr: context.DeadlineExceeded})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"query":"SELECT 1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, rec)["error"], "no database connection available")
}

func TestExecute_NotConnected(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{AcquireErr: database.ErrNotConnected})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"query":"SELECT 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not connected", decode(t, rec)["error"])
}

func TestExecute_ClientDisconnectCancelsStatement(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)
	driver := &testutil.FakeDriver{QueryFunc: func(ctx context.Context, _ string) (*database.RawResult, error) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return nil, ctx.Err()
	}}
	f := setup(t, driver)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(`{"query":"SELECT pg_sleep(60)"}`)).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.ServeHTTP(httptest.NewRecorder(), req)
	}()

	<-started
	cancel()

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("statement was not cancelled")
	}
	<-done
	assert.True(t, driver.Balanced())
}

// =============================================================================
// Assignments, hints and health
// =============================================================================

func TestAssignments(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{})
	require.NoError(t, f.store.Replace(context.Background(), assignment.Defaults()))

	rec := f.do(t, http.MethodGet, "/api/assignments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []assignment.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 5)
	assert.Equal(t, "employees", list[0].TableName)
	assert.Contains(t, rec.Body.String(), `"expectedColumns"`)
	assert.Contains(t, rec.Body.String(), `"tableName"`)

	rec = f.do(t, http.MethodGet, "/api/assignments/"+list[2].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Department Salary Average", decode(t, rec)["title"])

	rec = f.do(t, http.MethodGet, "/api/assignments/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Assignment not found", decode(t, rec)["error"])
}

func TestAssignments_StoreFailure(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{})
	require.NoError(t, f.store.Close())

	rec := f.do(t, http.MethodGet, "/api/assignments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch assignments", decode(t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/assignments/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch assignment", decode(t, rec)["error"])
}

func TestHint_Fallback(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{})

	rec := f.do(t, http.MethodPost, "/api/hint",
		`{"question":"Find the average salary per department","userQuery":"","tableName":"employees"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["hint"], "AVG()")

	rec = f.do(t, http.MethodPost, "/api/hint", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRootAndHealth(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{})

	rec := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CipherSQLStudio API running", decode(t, rec)["message"])

	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f = setup(t, &testutil.FakeDriver{PingErr: errors.New("down")})
	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	f := setup(t, &testutil.FakeDriver{})

	req := httptest.NewRequest(http.MethodOptions, "/api/execute", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(&stubBackend{}, Config{Logger: testutil.NewTestLogger(t), ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type stubBackend struct{}

func (stubBackend) Execute(context.Context, app.ExecuteRequest) (*gateway.Response, error) {
	return &gateway.Response{}, nil
}

func (stubBackend) Assignments(context.Context) ([]assignment.Assignment, error) {
	return nil, nil
}

func (stubBackend) Assignment(context.Context, string) (*assignment.Assignment, error) {
	return nil, assignment.ErrNotFound
}

func (stubBackend) Hint(context.Context, hint.Request) string { return "" }

func (stubBackend) Ping(context.Context) error { return nil }
