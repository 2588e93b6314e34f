// Package log is the process-wide zerolog logger. Until Init is called it
// discards everything; after Init every event is stored as a JSON row in a
// SQLite database so the `magma logs` command can read it back.
package log

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"magma-go/pkg/appdir"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	writesSinceInit atomic.Int64
	pkgLogger       = zerolog.Nop()
	sink            *dbSink
	dbHandle        *sql.DB
	mu              sync.RWMutex
	timeFieldFormat = time.RFC3339Nano

	ErrNotInitialized     = errors.New("log: logger not initialized, call log.Init() first")
	ErrAlreadyInitialized = errors.New("log: logger already initialized")
)

// dbSink is the io.Writer zerolog writes JSON lines into.
type dbSink struct {
	db   *sql.DB
	stmt *sql.Stmt
	mu   sync.Mutex
}

func openSink(dbPath string) (*dbSink, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode=wal&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db %s: %w", dbPath, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db %s: %w", dbPath, err)
	}

	_, err = db.Exec(`
    CREATE TABLE IF NOT EXISTS logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
        log_data TEXT NOT NULL
    );`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create logs table: %w", err)
	}

	for name, expr := range map[string]string{
		"idx_logs_json_time":  "json_extract(log_data, '$.time')",
		"idx_logs_json_level": "json_extract(log_data, '$.level')",
	} {
		if _, err := db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON logs (%s);", name, expr)); err != nil {
			stdlog.Printf("Warning: failed to create index %s: %v", name, err)
		}
	}

	stmt, err := db.Prepare(`INSERT INTO logs (log_data) VALUES (?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	return &dbSink{db: db, stmt: stmt}, nil
}

func (s *dbSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stmt == nil {
		return 0, ErrNotInitialized
	}
	if _, err := s.stmt.Exec(string(p)); err != nil {
		stdlog.Printf("ERROR writing log to SQLite: %v", err)
		return 0, err
	}
	writesSinceInit.Add(1)
	return len(p), nil
}

func (s *dbSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.stmt != nil {
		if err := s.stmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing statement: %w", err))
		}
		s.stmt = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing db: %w", err))
		}
		s.db = nil
	}
	return errors.Join(errs...)
}

// SetStd logs to stderr through a console writer instead of the database.
func SetStd() {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// SetOutput sends events to w, bypassing the database.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	pkgLogger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the minimum level for all events.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Init opens (or creates) dbFile and routes all events into it. A relative
// dbFile is resolved inside the magma-go state directory.
func Init(dbFile string) error {
	if dbFile == "" {
		return fmt.Errorf("log: Init needs an explicit database file")
	}

	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		return ErrAlreadyInitialized
	}

	dbPath := appdir.Join(dbFile)
	if dbPath != dbFile {
		if _, err := appdir.Ensure(); err != nil {
			return err
		}
	}

	s, err := openSink(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite writer: %w", err)
	}
	sink = s
	dbHandle = s.db
	writesSinceInit.Store(0)

	zerolog.TimeFieldFormat = timeFieldFormat
	pkgLogger = zerolog.New(sink).With().Timestamp().Logger()
	return nil
}

// Close flushes a final record and releases the database. Logging returns
// to a no-op afterwards.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return nil
	}

	s := sink
	sink = nil
	dbHandle = nil
	pkgLogger = zerolog.Nop()

	closing := zerolog.New(s).With().Timestamp().Logger()
	closing.Log().Msg("closing log database")

	if err := s.close(); err != nil {
		return fmt.Errorf("error closing SQLite logger: %w", err)
	}
	return nil
}

func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := pkgLogger
	return &l
}

func Debug() *zerolog.Event { return logger().Debug() }
func Info() *zerolog.Event  { return logger().Info() }
func Warn() *zerolog.Event  { return logger().Warn() }
func Error() *zerolog.Event { return logger().Error() }
func Fatal() *zerolog.Event { return logger().Fatal() }
func Log() *zerolog.Event   { return logger().Log() }

// Printf sends an info event. Arguments are handled in the manner of
// fmt.Printf.
func Printf(format string, v ...any) {
	logger().Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Fatalf(format string, v ...any) {
	logger().Fatal().Msgf(format, v...)
}
