package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shrek82/estetica-db/logger"
	"github.com/shrek82/estetica-db/pool"
)

const createAgendamentos = `CREATE TABLE agendamentos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nome_pessoa TEXT NOT NULL,
	contato_telefonico TEXT,
	email TEXT UNIQUE,
	data_agendamento DATE
)`

const insertAgendamento = "INSERT INTO agendamentos (nome_pessoa, contato_telefonico, email, data_agendamento) VALUES (?, ?, ?, ?)"

func quietLogger() logger.Logger {
	l := logger.NewStdLogger()
	l.SetOutput(io.Discard)
	return l
}

func setupTestDB(t *testing.T, size int) *DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "estetica.db") + "?_busy_timeout=5000"
	db, err := Open(context.Background(), "sqlite3", dsn, &pool.Options{Size: size, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(context.Background(), createAgendamentos); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *DB) int64 {
	t.Helper()
	res, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM agendamentos")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	row, _ := res.First()
	n, err := row.Int64("n")
	if err != nil {
		t.Fatalf("count not an integer: %v", err)
	}
	return n
}

func TestQueryCRUD(t *testing.T) {
	db := setupTestDB(t, 2)
	ctx := context.Background()

	// 1. Insert
	res, err := db.Query(ctx, insertAgendamento, "Maria Silva", "123456789", "maria@email.com", "2024-10-05")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if res.HasRows {
		t.Error("INSERT should not be executed as a read")
	}
	if res.RowsAffected != 1 {
		t.Errorf("Expected 1 row affected, got %d", res.RowsAffected)
	}
	if res.LastInsertID == 0 {
		t.Error("Expected a LastInsertID from sqlite")
	}

	// 2. Select by full name
	res, err = db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Len() != 1 {
		t.Fatalf("Expected exactly 1 row, got %d", res.Len())
	}
	row := res.Rows[0]
	if row.String("nome_pessoa") != "Maria Silva" ||
		row.String("contato_telefonico") != "123456789" ||
		row.String("email") != "maria@email.com" {
		t.Errorf("Unexpected row: %v", row)
	}
	date, err := row.Time("data_agendamento")
	if err != nil {
		t.Fatalf("data_agendamento: %v", err)
	}
	if date.Format("2006-01-02") != "2024-10-05" {
		t.Errorf("Expected date 2024-10-05, got %v", date)
	}
	wantCols := []string{"id", "nome_pessoa", "contato_telefonico", "email", "data_agendamento"}
	if !reflect.DeepEqual(res.Columns, wantCols) {
		t.Errorf("Expected columns %v, got %v", wantCols, res.Columns)
	}

	// 3. Select by part of the name
	res, err = db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa LIKE ?", "%Maria%")
	if err != nil {
		t.Fatalf("LIKE select failed: %v", err)
	}
	if res.Len() == 0 {
		t.Fatal("Expected rows for LIKE %Maria%")
	}
	for _, r := range res.Rows {
		if !strings.Contains(r.String("nome_pessoa"), "Maria") {
			t.Errorf("Row %v does not contain Maria", r)
		}
	}

	// 4. Update
	res, err = db.Query(ctx, "UPDATE agendamentos SET contato_telefonico = ? WHERE nome_pessoa = ?", "987654321", "Maria Silva")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("Expected 1 row updated, got %d", res.RowsAffected)
	}
	res, err = db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Select after update failed: %v", err)
	}
	if got := res.Rows[0].String("contato_telefonico"); got != "987654321" {
		t.Errorf("Expected updated phone 987654321, got %s", got)
	}

	// 5. Delete
	res, err = db.Query(ctx, "DELETE FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("Expected 1 row deleted, got %d", res.RowsAffected)
	}
	res, err = db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Select after delete failed: %v", err)
	}
	if res.Len() != 0 || res.Rows == nil {
		t.Errorf("Expected an empty, non-nil row set, got %#v", res.Rows)
	}
}

func TestIdempotentRead(t *testing.T) {
	db := setupTestDB(t, 2)
	ctx := context.Background()

	for i, email := range []string{"maria@email.com", "maria2@email.com"} {
		if _, err := db.Query(ctx, insertAgendamento, "Maria Silva", fmt.Sprint(i), email, "2024-10-05"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	first, err := db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	second, err := db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Repeated reads differ:\n%v\n%v", first.Rows, second.Rows)
	}
}

func TestRangeFilter(t *testing.T) {
	db := setupTestDB(t, 2)
	ctx := context.Background()

	dates := []string{"2024-09-30", "2024-10-01", "2024-10-05", "2024-10-10", "2024-10-11"}
	for i, d := range dates {
		if _, err := db.Query(ctx, insertAgendamento, fmt.Sprintf("Cliente %d", i), "123", fmt.Sprintf("c%d@email.com", i), d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	query := `
		SELECT * FROM agendamentos
		WHERE data_agendamento >= ? AND data_agendamento <= ?;
	`
	res, err := db.Query(ctx, query, "2024-10-01", "2024-10-10")
	if err != nil {
		t.Fatalf("Range select failed: %v", err)
	}
	if res.Len() != 3 {
		t.Fatalf("Expected 3 rows within the range, got %d", res.Len())
	}
	for _, r := range res.Rows {
		d, err := r.Time("data_agendamento")
		if err != nil {
			t.Fatalf("data_agendamento: %v", err)
		}
		day := d.Format("2006-01-02")
		if day < "2024-10-01" || day > "2024-10-10" {
			t.Errorf("Row dated %s outside [2024-10-01, 2024-10-10]", day)
		}
	}
}

func TestParameterCountMismatch(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()
	before := db.Stats().Acquired

	_, err := db.Query(ctx, insertAgendamento, "Maria Silva", "123456789", "maria@email.com")
	if !errors.Is(err, ErrParameterCount) {
		t.Fatalf("Expected ErrParameterCount, got %v", err)
	}
	var pe *ParameterCountError
	if !errors.As(err, &pe) || pe.Placeholders != 4 || pe.Params != 3 {
		t.Errorf("Unexpected error detail: %#v", err)
	}
	if db.Stats().Acquired != before {
		t.Error("A connection was acquired for a rejected statement")
	}
	if n := countRows(t, db); n != 0 {
		t.Errorf("Expected no rows after rejected insert, got %d", n)
	}

	_, err = db.Query(ctx, "SELECT * FROM agendamentos", "extra")
	if !errors.Is(err, ErrParameterCount) {
		t.Errorf("Expected ErrParameterCount for extra param, got %v", err)
	}
}

func TestPlaceholderInsideLiteral(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()

	if _, err := db.Query(ctx, insertAgendamento, "Quem?", "1", "q@email.com", "2024-10-05"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	res, err := db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = 'Quem?' AND email = ? -- why?", "q@email.com")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Len() != 1 {
		t.Errorf("Expected 1 row, got %d", res.Len())
	}
}

func TestBindValuesAreNotInterpolated(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()

	evil := "x'; DROP TABLE agendamentos; --"
	if _, err := db.Query(ctx, insertAgendamento, evil, "1", "e@email.com", "2024-10-05"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	res, err := db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", evil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Len() != 1 || res.Rows[0].String("nome_pessoa") != evil {
		t.Errorf("Expected the literal value back, got %v", res.Rows)
	}
}

func TestConstraintViolation(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()

	if _, err := db.Query(ctx, insertAgendamento, "Maria Silva", "1", "maria@email.com", "2024-10-05"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_, err := db.Query(ctx, insertAgendamento, "Outra Maria", "2", "maria@email.com", "2024-10-06")
	if !errors.Is(err, ErrQueryExecution) {
		t.Fatalf("Expected ErrQueryExecution, got %v", err)
	}
	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("Expected QueryExecutionError, got %T", err)
	}
	if qe.Code != "SQLITE_CONSTRAINT_UNIQUE" {
		t.Errorf("Expected SQLITE_CONSTRAINT_UNIQUE, got %s", qe.Code)
	}
	if !strings.Contains(qe.Message, "UNIQUE") {
		t.Errorf("Expected driver message to be kept, got %s", qe.Message)
	}
	if st := db.Stats(); st.InUse != 0 || st.Idle != 1 {
		t.Errorf("Connection not released after failure: %+v", st)
	}
}

func TestSyntaxError(t *testing.T) {
	db := setupTestDB(t, 1)

	_, err := db.Query(context.Background(), "SELEC * FROM agendamentos")
	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("Expected QueryExecutionError, got %v", err)
	}
	if qe.Code != "SQLITE_ERROR" {
		t.Errorf("Expected SQLITE_ERROR, got %s", qe.Code)
	}

	_, err = db.Query(context.Background(), "SELECT * FROM non_existent_table")
	if !errors.As(err, &qe) || !strings.Contains(qe.Message, "no such table") {
		t.Errorf("Expected no such table error, got %v", err)
	}
	if st := db.Stats(); st.InUse != 0 {
		t.Errorf("Connection not released after failure: %+v", st)
	}
}

func TestEmptyStatement(t *testing.T) {
	db := setupTestDB(t, 1)

	_, err := db.Query(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidSQL) || !errors.Is(err, ErrQueryExecution) {
		t.Errorf("Expected ErrInvalidSQL, got %v", err)
	}
}

func TestQueryAfterClose(t *testing.T) {
	db := setupTestDB(t, 1)
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := db.Query(context.Background(), "SELECT 1")
	if !errors.Is(err, ErrPoolClosed) || !errors.Is(err, ErrConnection) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("Expected ConnectionError, got %T", err)
	}
}

func TestDeadlineDuringExecution(t *testing.T) {
	db := setupTestDB(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := db.Query(ctx, "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c WHERE x < 200000000) SELECT COUNT(*) AS n FROM c")
	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("Expected QueryExecutionError, got %T: %v", err, err)
	}
	if errors.Is(err, ErrConnection) {
		t.Errorf("A cancelled statement is not a connection failure: %v", err)
	}

	if st := db.Stats(); st.InUse != 0 || st.Idle != 1 {
		t.Errorf("Connection not released after the deadline: %+v", st)
	}
	if _, err := db.Query(context.Background(), "SELECT 1 AS one"); err != nil {
		t.Errorf("Pool unusable after a cancelled statement: %v", err)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	db := setupTestDB(t, 1)
	conn, err := db.Pool().Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer db.Pool().Release(conn)

	req := &Request{SQL: "SELECT SLEEP(10)", BoundSQL: "SELECT SLEEP(10)"}
	for _, name := range []string{"mysql", "postgres", "sqlite3"} {
		db.dialect = mustDialect(t, name)
		for _, cause := range []error{context.DeadlineExceeded, context.Canceled} {
			err := db.classify(conn, req, fmt.Errorf("exec: %w", cause))
			var qe *QueryExecutionError
			if !errors.As(err, &qe) || !errors.Is(err, cause) {
				t.Errorf("%s: expected QueryExecutionError wrapping %v, got %T: %v", name, cause, err, err)
			}
		}
	}
}

func TestForcedModes(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()

	if _, err := db.Query(ctx, insertAgendamento, "Maria Silva", "1", "maria@email.com", "2024-10-05"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	res, err := db.Select(ctx, "INSERT INTO agendamentos (nome_pessoa) VALUES (?) RETURNING id, nome_pessoa", "Joana")
	if err != nil {
		t.Fatalf("Insert returning failed: %v", err)
	}
	if !res.HasRows || res.Len() != 1 || res.Rows[0].String("nome_pessoa") != "Joana" {
		t.Errorf("Expected the returned row, got %#v", res)
	}

	res, err = db.Query(ctx, "UPDATE agendamentos SET email = ? WHERE nome_pessoa = ? RETURNING email", "j@email.com", "Joana")
	if err != nil {
		t.Fatalf("Update returning failed: %v", err)
	}
	if !res.HasRows || res.Rows[0].String("email") != "j@email.com" {
		t.Errorf("RETURNING should be read as rows, got %#v", res)
	}

	res, err = db.Exec(ctx, "SELECT * FROM agendamentos")
	if err != nil {
		t.Fatalf("Forced exec failed: %v", err)
	}
	if res.HasRows {
		t.Error("Exec must not read rows")
	}
}

func TestConcurrentQueries(t *testing.T) {
	db := setupTestDB(t, 2)
	ctx := context.Background()

	if _, err := db.Query(ctx, insertAgendamento, "Maria Silva", "1", "maria@email.com", "2024-10-05"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := db.Query(ctx, "SELECT * FROM agendamentos WHERE nome_pessoa = ?", "Maria Silva")
			if err != nil {
				errs <- err
				return
			}
			if res.Len() != 1 {
				errs <- fmt.Errorf("expected 1 row, got %d", res.Len())
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	st := db.Stats()
	if st.InUse != 0 || st.Idle != 2 {
		t.Errorf("Handles leaked: %+v", st)
	}
}

func TestQueryWaitsForFreeConnection(t *testing.T) {
	db := setupTestDB(t, 1)
	ctx := context.Background()

	held, err := db.Pool().Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := db.Query(ctx, "SELECT 1 AS one")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Query returned while the pool was exhausted: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	db.Pool().Release(held)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Query failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Query was not resumed after release")
	}
}

func TestSQLErrorLogging(t *testing.T) {
	db := setupTestDB(t, 1)

	buf := &bytes.Buffer{}
	l := logger.NewStdLogger()
	l.SetOutput(buf)
	l.SetLevel(logger.LogLevelError)
	db.SetLogger(l)

	if _, err := db.Query(context.Background(), "SELECT * FROM non_existent_table"); err == nil {
		t.Fatal("Expected error from invalid SQL, got nil")
	}

	output := buf.String()
	if !strings.Contains(output, "SQL_ERROR") || !strings.Contains(output, "no such table: non_existent_table") {
		t.Errorf("Expected SQL error line, got: %s", output)
	}
}

type recordingMiddleware struct {
	name  string
	calls *[]string
}

func (m *recordingMiddleware) Name() string      { return m.name }
func (m *recordingMiddleware) Init(db *DB) error { return nil }
func (m *recordingMiddleware) Shutdown() error {
	*m.calls = append(*m.calls, "shutdown "+m.name)
	return nil
}

func (m *recordingMiddleware) Process(ctx context.Context, req *Request, next QueryFunc) (*Result, error) {
	*m.calls = append(*m.calls, "before "+m.name)
	res, err := next(ctx, req)
	*m.calls = append(*m.calls, "after "+m.name)
	return res, err
}

func TestMiddlewareOrder(t *testing.T) {
	db := setupTestDB(t, 1)

	var calls []string
	if err := db.Use(&recordingMiddleware{"a", &calls}, &recordingMiddleware{"b", &calls}); err != nil {
		t.Fatalf("Use failed: %v", err)
	}
	if _, err := db.Query(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"before a", "before b", "after b", "after a"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("Expected %v, got %v", want, calls)
	}

	// rejected statements never reach the chain
	calls = nil
	db.Query(context.Background(), "SELECT ?")
	if len(calls) != 0 {
		t.Errorf("Middleware saw a rejected statement: %v", calls)
	}

	db.Close()
	if !reflect.DeepEqual(calls, []string{"shutdown a", "shutdown b"}) {
		t.Errorf("Expected middleware shutdown on Close, got %v", calls)
	}
}
