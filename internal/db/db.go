package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/tphummel/devices/internal/models"
	"golang.org/x/text/cases"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no device has the requested id.
	ErrNotFound = errors.New("device not found")
	// ErrConcurrentModification is returned by Save when the stored version no
	// longer matches the version carried by the device.
	ErrConcurrentModification = errors.New("device was modified concurrently")
)

// Supported SQL dialects.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so creation times sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const deviceColumns = `id, name, brand, state, creation_time, version`

// DB wraps a SQL connection holding the devices table.
type DB struct {
	conn    *sql.DB
	dialect string
}

// Open connects to the database for driver and runs migrations. For sqlite
// dsn is a file path (or ":memory:"); for postgres it is a connection URL.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return New(dsn)
	case DriverPostgres:
		return newPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// busyTimeoutMS is how long a SQLite connection waits on a locked database
// before failing with SQLITE_BUSY.
const busyTimeoutMS = 5000

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeoutMS)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer; a :memory: database would also be private
	// to each pooled connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	d := &DB{conn: conn, dialect: DriverSQLite}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func newPostgres(url string) (*DB, error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{conn: conn, dialect: DriverPostgres}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			` + idColumn + `,
			name          TEXT NOT NULL,
			brand         TEXT NOT NULL,
			name_key      TEXT NOT NULL,
			brand_key     TEXT NOT NULL,
			state         TEXT NOT NULL DEFAULT 'available',
			creation_time TEXT NOT NULL,
			version       BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_brand ON devices(brand_key)`,
		`CREATE INDEX IF NOT EXISTS idx_device_name_brand ON devices(name_key, brand_key)`,
		`CREATE INDEX IF NOT EXISTS idx_device_state ON devices(state)`,
	}
	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// FindByID returns the device with the given id, or ErrNotFound.
func (d *DB) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	row := d.conn.QueryRowContext(ctx, d.rebind(`
		SELECT `+deviceColumns+`
		FROM devices WHERE id = ?`), id)
	dev, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find device %d: %w", id, err)
	}
	return dev, nil
}

// FindByBrand returns devices whose brand matches ignoring case.
func (d *DB) FindByBrand(ctx context.Context, brand string) ([]*models.Device, error) {
	return d.query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices WHERE brand_key = ?
		ORDER BY id`, foldKey(brand))
}

// FindByState returns devices in the given state.
func (d *DB) FindByState(ctx context.Context, state models.State) ([]*models.Device, error) {
	return d.query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices WHERE state = ?
		ORDER BY id`, string(state))
}

// ListAllByCreationDesc returns every device, newest first. Devices created at
// the same instant are ordered by id descending.
func (d *DB) ListAllByCreationDesc(ctx context.Context) ([]*models.Device, error) {
	return d.query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY creation_time DESC, id DESC`)
}

// ExistsByNameAndBrand reports whether a device with the same name and brand,
// compared ignoring case, is already stored.
func (d *DB) ExistsByNameAndBrand(ctx context.Context, name, brand string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, d.rebind(`
		SELECT COUNT(*) FROM devices
		WHERE name_key = ? AND brand_key = ?`), foldKey(name), foldKey(brand)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check duplicate device: %w", err)
	}
	return n > 0, nil
}

// CountByState returns the number of devices in state.
func (d *DB) CountByState(ctx context.Context, state models.State) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM devices WHERE state = ?`), string(state)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}

// CountByStates returns device counts for every state. States without devices
// are reported as zero.
func (d *DB) CountByStates(ctx context.Context) (map[models.State]int, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT state, COUNT(*) FROM devices GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count devices: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.State]int, 3)
	for _, s := range models.ValidStates() {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[models.State(state)] = n
	}
	return counts, rows.Err()
}

// Save inserts dev when it has no id yet, assigning id, creation time and the
// initial version. Otherwise it updates the mutable fields only if the stored
// version still equals dev.Version, returning ErrConcurrentModification when
// it does not. The returned device carries the stored values.
func (d *DB) Save(ctx context.Context, dev *models.Device) (*models.Device, error) {
	if dev.ID == 0 {
		return d.insert(ctx, dev)
	}
	return d.update(ctx, dev)
}

func (d *DB) insert(ctx context.Context, dev *models.Device) (*models.Device, error) {
	out := *dev
	if out.State == "" {
		out.State = models.StateAvailable
	}
	// Round(0) drops the monotonic reading so the value equals what FindByID
	// parses back from timeLayout.
	out.CreationTime = time.Now().UTC().Round(0)
	out.Version = 1

	err := d.conn.QueryRowContext(ctx, d.rebind(`
		INSERT INTO devices (name, brand, name_key, brand_key, state, creation_time, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		out.Name, out.Brand, foldKey(out.Name), foldKey(out.Brand), string(out.State),
		out.CreationTime.Format(timeLayout), out.Version,
	).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return &out, nil
}

func (d *DB) update(ctx context.Context, dev *models.Device) (*models.Device, error) {
	res, err := d.conn.ExecContext(ctx, d.rebind(`
		UPDATE devices
		SET name = ?, brand = ?, name_key = ?, brand_key = ?, state = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		dev.Name, dev.Brand, foldKey(dev.Name), foldKey(dev.Brand), string(dev.State),
		dev.ID, dev.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update device %d: %w", dev.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// either the row is gone or someone else bumped the version
		if _, err := d.FindByID(ctx, dev.ID); err != nil {
			return nil, err
		}
		return nil, ErrConcurrentModification
	}
	return d.FindByID(ctx, dev.ID)
}

// Delete removes dev. Returns ErrNotFound if no such device exists.
func (d *DB) Delete(ctx context.Context, dev *models.Device) error {
	res, err := d.conn.ExecContext(ctx, d.rebind(`DELETE FROM devices WHERE id = ?`), dev.ID)
	if err != nil {
		return fmt.Errorf("delete device %d: %w", dev.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) query(ctx context.Context, query string, args ...any) ([]*models.Device, error) {
	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	devices := []*models.Device{}
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// foldKey returns the Unicode case folding of s. Name and brand comparisons
// run on folded keys so every backend agrees on non-ASCII input.
func foldKey(s string) string {
	return cases.Fold().String(s)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*models.Device, error) {
	var (
		dev          models.Device
		state        string
		creationTime string
	)
	if err := s.Scan(&dev.ID, &dev.Name, &dev.Brand, &state, &creationTime, &dev.Version); err != nil {
		return nil, err
	}
	dev.State = models.State(state)
	var err error
	dev.CreationTime, err = time.Parse(timeLayout, creationTime)
	if err != nil {
		return nil, fmt.Errorf("parse creation_time %q: %w", creationTime, err)
	}
	return &dev, nil
}
