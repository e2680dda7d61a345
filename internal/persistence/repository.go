/*
Package persistence
File: repository.go
Description:
    Save slots in SQL. SQLite (modernc, pure Go) is the default; Postgres
    is selected with DB_DIALECT=postgres through the pgx stdlib driver.
    Schema changes are embedded SQL files applied once each and recorded
    in schema_migrations.
*/

package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/everforgeworks/merc-command/internal/state"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultSQLitePath is used when DB_SQLITE_PATH is unset.
var DefaultSQLitePath = filepath.Join("data", "merc_command.sqlite")

// ErrSlotNotFound is returned for a slot with no save.
var ErrSlotNotFound = errors.New("persistence: save slot not found")

// SlotInfo describes one save without its contents.
type SlotInfo struct {
	Slot          string     `json:"slot"`
	Company       string     `json:"company"`
	GameDate      state.Date `json:"gameDate"`
	Funds         int64      `json:"funds"`
	SchemaVersion string     `json:"schemaVersion"`
	Checksum      string     `json:"checksum"`
	Size          int        `json:"size"` // Uncompressed bytes
	Stored        int        `json:"stored"`
	SavedAt       time.Time  `json:"savedAt"`
}

// Repository stores save slots.
type Repository struct {
	dialect Dialect
	db      *sql.DB
	log     *slog.Logger
}

// OpenFromEnv opens the database named by DB_DIALECT, DB_SQLITE_PATH and
// DB_POSTGRES_DSN (or DATABASE_URL).
func OpenFromEnv(ctx context.Context, log *slog.Logger) (*Repository, error) {
	dialectRaw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if dialectRaw == "" {
		dialectRaw = string(DialectSQLite)
	}
	dialect := Dialect(dialectRaw)

	var dsn string
	switch dialect {
	case DialectSQLite:
		dsn = strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
	case DialectPostgres:
		dsn = strings.TrimSpace(os.Getenv("DB_POSTGRES_DSN"))
		if dsn == "" {
			dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialectRaw)
	}
	return Open(ctx, dialect, dsn, log)
}

// Open connects, pings and migrates.
func Open(ctx context.Context, dialect Dialect, dsn string, log *slog.Logger) (*Repository, error) {
	if log == nil {
		log = slog.Default()
	}

	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	r := &Repository{dialect: dialect, db: db, log: log.With(slog.String("system", "persistence"))}
	if err := r.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r.log.Info("Save database ready", "dialect", dialect)
	return r, nil
}

// Close releases the connection pool.
func (r *Repository) Close() error { return r.db.Close() }

// Dialect reports the backend in use.
func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) bind(pos int) string {
	if r.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (r *Repository) binds(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = r.bind(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (r *Repository) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", r.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at) VALUES (%s)", r.binds(2))
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
		r.log.Debug("Migration applied", "version", base)
	}
	return nil
}

// header is the part of a document a slot listing shows.
type header struct {
	Version string `json:"version"`
	Company struct {
		Name  string `json:"name"`
		Funds int64  `json:"funds"`
	} `json:"company"`
	Time state.Time `json:"time"`
}

// Save writes an exported document to slot, replacing any previous save.
func (r *Repository) Save(ctx context.Context, slot string, data []byte) (SlotInfo, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return SlotInfo{}, fmt.Errorf("read save header: %w", err)
	}
	blob, err := Compress(data)
	if err != nil {
		return SlotInfo{}, err
	}
	info := SlotInfo{
		Slot:          slot,
		Company:       h.Company.Name,
		GameDate:      h.Time.Date(),
		Funds:         h.Company.Funds,
		SchemaVersion: h.Version,
		Checksum:      Checksum(data),
		Size:          len(data),
		Stored:        len(blob),
		SavedAt:       time.Now().UTC(),
	}

	q := fmt.Sprintf(`INSERT INTO save_slots
		(slot, company, game_date, funds, schema_version, checksum, raw_size, blob, saved_at)
		VALUES (%s)
		ON CONFLICT (slot) DO UPDATE SET
			company = excluded.company,
			game_date = excluded.game_date,
			funds = excluded.funds,
			schema_version = excluded.schema_version,
			checksum = excluded.checksum,
			raw_size = excluded.raw_size,
			blob = excluded.blob,
			saved_at = excluded.saved_at`, r.binds(9))
	if _, err := r.db.ExecContext(ctx, q,
		info.Slot, info.Company, formatDate(info.GameDate), info.Funds, info.SchemaVersion,
		info.Checksum, info.Size, blob, info.SavedAt,
	); err != nil {
		return SlotInfo{}, fmt.Errorf("save slot %s: %w", slot, err)
	}
	r.log.Debug("Slot saved", "slot", slot, "bytes", info.Size, "stored", info.Stored)
	return info, nil
}

// Load returns the verified document bytes stored in slot.
func (r *Repository) Load(ctx context.Context, slot string) ([]byte, error) {
	var blob []byte
	var checksum string
	q := fmt.Sprintf("SELECT blob, checksum FROM save_slots WHERE slot = %s", r.bind(1))
	err := r.db.QueryRowContext(ctx, q, slot).Scan(&blob, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	data, err := Decompress(blob, checksum)
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return data, nil
}

// LoadDocument loads, migrates and validates the document in slot.
func (r *Repository) LoadDocument(ctx context.Context, slot string) (state.Document, error) {
	data, err := r.Load(ctx, slot)
	if err != nil {
		return state.Document{}, err
	}
	return state.Decode(data)
}

// List describes every slot, most recent first.
func (r *Repository) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot, company, game_date, funds, schema_version,
		checksum, raw_size, length(blob), saved_at FROM save_slots ORDER BY saved_at DESC, slot`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var date string
		if err := rows.Scan(&info.Slot, &info.Company, &date, &info.Funds, &info.SchemaVersion,
			&info.Checksum, &info.Size, &info.Stored, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		info.GameDate = parseDate(date)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return out, nil
}

// Delete removes slot. Deleting a missing slot is an error.
func (r *Repository) Delete(ctx context.Context, slot string) error {
	q := fmt.Sprintf("DELETE FROM save_slots WHERE slot = %s", r.bind(1))
	res, err := r.db.ExecContext(ctx, q, slot)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return nil
}

func formatDate(d state.Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func parseDate(s string) state.Date {
	var d state.Date
	fmt.Sscanf(s, "%d-%d-%d", &d.Year, &d.Month, &d.Day)
	return d
}
