package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	SQL *sql.DB
}

type migration struct {
	version int
	name    string
}

// Open ouvre (ou crée) la base puis applique les migrations. dsn accepte
// ":memory:" pour les tests.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Une seule connexion: ":memory:" reste partagé et sqlite n'a qu'un writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	d := &DB{SQL: conn}
	if err := d.init(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	return d, nil
}

func (d *DB) init(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.SQL.PingContext(pingCtx); err != nil {
		return err
	}
	if _, err := d.SQL.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return err
	}
	return d.Migrate(ctx)
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// Ping est utilisé par /health.
func (d *DB) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

// Migrate applique les migrations embarquées dont la version dépasse
// PRAGMA user_version, chacune dans sa transaction.
func (d *DB) Migrate(ctx context.Context) error {
	var current int
	if err := d.SQL.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	steps, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, m := range steps {
		if m.version <= current {
			continue
		}
		if err := d.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func loadMigrations() ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]migration, 0, len(names))
	for _, full := range names {
		name := path.Base(full)
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.Atoi(prefix)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid migration name: %s", name)
		}
		out = append(out, migration{version: v, name: name})
	}
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

func (d *DB) apply(ctx context.Context, m migration) error {
	raw, err := migrationsFS.ReadFile("migrations/" + m.name)
	if err != nil {
		return err
	}

	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if up := upSection(string(raw)); up != "" {
		if _, err := tx.ExecContext(ctx, up); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	// PRAGMA n'accepte pas de paramètre lié.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// upSection garde uniquement la partie "-- +migrate Up" d'un fichier.
func upSection(sqlText string) string {
	up := sqlText
	if _, rest, ok := strings.Cut(sqlText, "-- +migrate Up"); ok {
		up = rest
	}
	up, _, _ = strings.Cut(up, "-- +migrate Down")
	return strings.TrimSpace(up)
}
