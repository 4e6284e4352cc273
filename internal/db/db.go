package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names. Each has its own migration directory.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Open opens the database behind dsn with the given driver and applies pending migrations.
// It uses versioned .sql files under internal/db/migrations/<driver> following the pattern:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// Only new migrations are applied. Use RollbackLast to revert the last applied migration.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "todolist.db"
		}
		dsn = sqliteDSN(dsn)
	case DriverMySQL:
		tuned, err := tuneMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = tuned
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	d, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if err := sqlitePragmas(d); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	if err := applyMigrations(d); err != nil {
		_ = d.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if err := adoptLegacyEntries(d); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("import legacy entries: %w", err)
		}
	}
	return d, nil
}

// adoptLegacyEntries copies rows from the entries table of older databases into
// tasks, keeping their ids, then renames entries to entries_imported so the
// copy happens once. Rows whose owner no longer exists stay behind.
func adoptLegacyEntries(d *sqlx.DB) error {
	var n int
	if err := d.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'entries'`); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return WithTx(context.Background(), d, func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`INSERT INTO tasks (id, what_to_do, due_date, status, label, user_id)
SELECT e.id, e.what_to_do, e.due_date, e.status, COALESCE(e.label, ''), e.user_id
FROM entries e
WHERE e.user_id IN (SELECT id FROM users) AND e.id NOT IN (SELECT id FROM tasks)`)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`ALTER TABLE entries RENAME TO entries_imported`); err != nil {
			return err
		}
		copied, _ := res.RowsAffected()
		log.Printf("imported %d tasks from legacy entries table", copied)
		return nil
	})
}

func sqlitePragmas(d *sqlx.DB) error {
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	if _, err := d.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return err
	}
	_, err := d.Exec(`PRAGMA foreign_keys=ON`)
	return err
}

// sqliteDSN turns on foreign keys and the busy timeout for every pooled
// connection; a PRAGMA only reaches the connection it runs on.
func sqliteDSN(dsn string) string {
	for _, p := range []string{"_foreign_keys=on", "_busy_timeout=5000"} {
		key := p[:strings.IndexByte(p, '=')+1]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn
}

// tuneMySQLDSN makes RowsAffected count matched rows, so marking an already
// done task still reports the row as found.
func tuneMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// WithTx runs fn inside a transaction on d. The transaction is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func WithTx(ctx context.Context, d *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	if d == nil {
		return errors.New("nil db")
	}
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
func RollbackLast(d *sqlx.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(d); err != nil {
		return err
	}
	var version int
	err := d.QueryRow(`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return nil // nothing to rollback
	} else if err != nil {
		return err
	}
	migs, err := loadMigrations(d.DriverName())
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	sqlText, err := migrationsFS.ReadFile(m.downFile)
	if err != nil {
		return err
	}
	text := string(sqlText)
	deleteVersion := d.Rebind(`DELETE FROM schema_migrations WHERE version = ?`)
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		if err := execScript(d, text); err != nil {
			return err
		}
		_, err := d.Exec(deleteVersion, version)
		return err
	}
	tx, err := d.Beginx()
	if err != nil {
		return err
	}
	if err := execScript(tx, text); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(deleteVersion, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AppliedVersions lists applied migration versions in ascending order.
func AppliedVersions(d *sqlx.DB) ([]int, error) {
	got, err := appliedVersions(d)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(got))
	for v := range got {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

//go:embed migrations
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string // path inside embedded FS
	downFile string // path inside embedded FS
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

func loadMigrations(driver string) (map[int]migration, error) {
	entries := map[int]migration{}
	dir := "migrations/" + driver
	list, err := stdfs.ReadDir(migrationsFS, dir)
	if err != nil {
		// if directory missing, just return empty set
		return entries, nil
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		m := migFileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		verStr, migName, kind := m[1], m[2], m[3]
		var ver int
		if _, err := fmt.Sscanf(verStr, "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = migName
		p := dir + "/" + name
		if kind == "up" {
			item.upFile = p
		} else {
			item.downFile = p
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(d *sqlx.DB) error {
	_, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	return err
}

func appliedVersions(d *sqlx.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(d); err != nil {
		return nil, err
	}
	var versions []int
	if err := d.Select(&versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, err
	}
	got := make(map[int]bool, len(versions))
	for _, v := range versions {
		got[v] = true
	}
	return got, nil
}

func applyMigrations(d *sqlx.DB) error {
	migs, err := loadMigrations(d.DriverName())
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		// nothing to do
		return nil
	}
	applied, err := appliedVersions(d)
	if err != nil {
		return err
	}
	// order versions
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	insertVersion := d.Rebind(`INSERT INTO schema_migrations(version) VALUES(?)`)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		sqlText, err := migrationsFS.ReadFile(m.upFile)
		if err != nil {
			return err
		}
		text := string(sqlText)
		if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
			// Execute as-is without wrapping in a transaction
			if err := execScript(d, text); err != nil {
				return fmt.Errorf("migration %04d failed: %w", v, err)
			}
			if _, err := d.Exec(insertVersion, v); err != nil {
				return err
			}
			continue
		}
		tx, err := d.Beginx()
		if err != nil {
			return err
		}
		if err := execScript(tx, text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %04d failed: %w", v, err)
		}
		if _, err := tx.Exec(insertVersion, v); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// execScript runs a migration one statement at a time; the MySQL driver
// rejects multi-statement Exec unless the DSN opts in.
func execScript(e sqlx.Execer, text string) error {
	for _, stmt := range splitStatements(text) {
		if _, err := e.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements splits a script on semicolons that end a line. Comment-only
// chunks are dropped.
func splitStatements(text string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(cur.String()); stmt != ";" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
