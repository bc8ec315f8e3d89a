package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	_ "modernc.org/sqlite"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrCertificateNotFound is returned when patching an unknown document.
var ErrCertificateNotFound = errors.New("catch certificate not found")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS catch_certificates (
  document_number   TEXT PRIMARY KEY,
  status            TEXT NOT NULL,
  created_at        DATETIME NOT NULL,
  resubmit_to_trade INTEGER NOT NULL DEFAULT 0 CHECK (resubmit_to_trade IN (0,1)),
  document          TEXT NOT NULL,
  updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_certificates_status ON catch_certificates(status);
CREATE TABLE IF NOT EXISTS landings (
  id               INTEGER PRIMARY KEY,
  rss_number       TEXT NOT NULL,
  date_landed      TEXT NOT NULL,
  date_time_landed TEXT NOT NULL,
  source           TEXT NOT NULL,
  items            TEXT NOT NULL,
  items_hash       TEXT NOT NULL,
  first_seen_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(rss_number, date_time_landed, source, items_hash)
);
CREATE INDEX IF NOT EXISTS idx_landings_vessel_day ON landings(rss_number, date_landed);
CREATE TABLE IF NOT EXISTS audit_payloads (
  id        INTEGER PRIMARY KEY,
  key       TEXT NOT NULL UNIQUE,
  payload   TEXT,
  stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveCertificate inserts or fully replaces a certificate document.
func (d *DB) SaveCertificate(ctx context.Context, c CatchCertificate) error {
	if c.DocumentNumber == "" {
		return errors.New("certificate without document number")
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO catch_certificates(document_number, status, created_at, resubmit_to_trade, document, updated_at)
VALUES(?,?,?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(document_number) DO UPDATE SET
  status = excluded.status,
  created_at = excluded.created_at,
  resubmit_to_trade = excluded.resubmit_to_trade,
  document = excluded.document,
  updated_at = CURRENT_TIMESTAMP`,
		c.DocumentNumber, c.Status, c.CreatedAt.UTC().Format(timeLayout), boolToInt(c.ResubmitToTrade), string(doc))
	return err
}

// GetCatchCertificates returns certificates matching the filter, ordered by
// creation time then document number.
func (d *DB) GetCatchCertificates(ctx context.Context, f CertificateFilter) ([]CatchCertificate, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if len(f.Statuses) > 0 {
		where += " AND status IN (" + placeholders(len(f.Statuses)) + ")"
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.ResubmitOnly {
		where += " AND resubmit_to_trade = 1"
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT document FROM catch_certificates "+where+" ORDER BY created_at, document_number", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		wanted[id] = true
	}

	var out []CatchCertificate
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !referencesAny(doc, wanted) {
			continue
		}
		var c CatchCertificate
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// referencesAny checks the catch entry ids of a raw document without
// decoding it in full.
func referencesAny(doc string, wanted map[string]bool) bool {
	found := false
	gjson.Get(doc, "products.#.caughtBy.#.id").ForEach(func(_, product gjson.Result) bool {
		product.ForEach(func(_, id gjson.Result) bool {
			if wanted[id.String()] {
				found = true
			}
			return !found
		})
		return !found
	})
	return found
}

// UpsertCertificate applies a patch of sjson paths to a stored document.
// The status and resubmitToTrade paths are mirrored to their columns.
func (d *DB) UpsertCertificate(ctx context.Context, documentNumber string, patch map[string]interface{}) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var doc string
	err = tx.QueryRowContext(ctx, "SELECT document FROM catch_certificates WHERE document_number = ?", documentNumber).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%s: %w", documentNumber, ErrCertificateNotFound)
		return err
	}
	if err != nil {
		return err
	}

	for _, path := range sortedKeys(patch) {
		doc, err = sjson.Set(doc, path, patch[path])
		if err != nil {
			return fmt.Errorf("patch %s of %s: %w", path, documentNumber, err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE catch_certificates SET document = ?, status = ?, resubmit_to_trade = ?, updated_at = CURRENT_TIMESTAMP WHERE document_number = ?`,
		doc, gjson.Get(doc, "status").String(), boolToInt(gjson.Get(doc, "resubmitToTrade").Bool()), documentNumber)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetStoredLandings returns the landings already stored for a vessel on a
// calendar day.
func (d *DB) GetStoredLandings(ctx context.Context, rssNumber string, day time.Time) ([]Landing, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT rss_number, date_time_landed, source, items FROM landings WHERE rss_number = ? AND date_landed = ? ORDER BY date_time_landed, id", rssNumber, utils.FormatDay(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Landing
	for rows.Next() {
		var (
			l             Landing
			landedAt, raw string
		)
		if err := rows.Scan(&l.RssNumber, &landedAt, &l.Source, &raw); err != nil {
			return nil, err
		}
		if l.DateTimeLanded, err = time.Parse(time.RFC3339Nano, landedAt); err != nil {
			return nil, fmt.Errorf("stored landing for %s has bad timestamp %q: %w", rssNumber, landedAt, err)
		}
		if err := json.Unmarshal([]byte(raw), &l.Items); err != nil {
			return nil, fmt.Errorf("stored landing items for %s: %w", rssNumber, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertLandings stores landings keyed by vessel, landing time, source and
// item multiset. Landings differing only in item order are the same row.
func (d *DB) UpsertLandings(ctx context.Context, landings []Landing) (err error) {
	if len(landings) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, l := range landings {
		var items []byte
		items, err = json.Marshal(l.Items)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO landings(rss_number, date_landed, date_time_landed, source, items, items_hash)
VALUES(?,?,?,?,?,?)
ON CONFLICT(rss_number, date_time_landed, source, items_hash) DO UPDATE SET
  last_seen_at = CURRENT_TIMESTAMP`,
			l.RssNumber, utils.FormatDay(l.DateTimeLanded), l.DateTimeLanded.UTC().Format(timeLayout), l.Source, string(items), itemsHash(l.Items))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PersistAuditPayload keeps a raw provider payload under key.
func (d *DB) PersistAuditPayload(ctx context.Context, key string, payload []byte) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO audit_payloads(key, payload) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, stored_at = CURRENT_TIMESTAMP`, key, nullIfEmpty(string(payload)))
	return err
}

func (d *DB) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		CertificatesByStatus: map[string]int{},
		LandingsBySource:     map[string]int{},
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT status, COUNT(*) FROM catch_certificates GROUP BY status ORDER BY status")
	if err != nil {
		return s, err
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return s, err
		}
		s.CertificatesByStatus[status] = n
	}
	if err := rows.Close(); err != nil {
		return s, err
	}

	rows, err = d.sql.QueryContext(ctx, "SELECT source, COUNT(*) FROM landings GROUP BY source ORDER BY source")
	if err != nil {
		return s, err
	}
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return s, err
		}
		s.LandingsBySource[source] = n
		s.Landings += n
	}
	if err := rows.Close(); err != nil {
		return s, err
	}

	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_payloads").Scan(&s.AuditPayloads); err != nil {
		return s, err
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
