// Package storage is the SQLite persistence backend for signed-in owners.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/reminder"
	"usaha/internal/store"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentStore keeps each owner's businesses in SQLite. Jobs are stored as
// JSON documents; incomes, expenses and labels as plain rows.
type DocumentStore struct {
	*store.Broadcaster

	db     *sql.DB
	logger *log.Logger
}

var (
	_ store.Backend        = (*DocumentStore)(nil)
	_ reminder.Source      = (*DocumentStore)(nil)
	_ reminder.Recipients  = (*DocumentStore)(nil)
	_ reminder.MarkerStore = (*DocumentStore)(nil)
)

// Open creates the database file if needed, migrates it and returns a store.
func Open(ctx context.Context, dbPath string, logger *log.Logger) (*DocumentStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("SQLite store ready", "path", dbPath, "schema_version", version)
	return &DocumentStore{
		Broadcaster: store.NewBroadcaster(),
		db:          db,
		logger:      logger,
	}, nil
}

func (s *DocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside one transaction. Any error rolls everything back.
func (s *DocumentStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// write runs fn in a transaction and then publishes the owner's collection.
func (s *DocumentStore) write(ctx context.Context, owner string, fn func(tx *sql.Tx) error) error {
	if err := s.withTx(ctx, fn); err != nil {
		return err
	}
	snapshot, err := s.Load(ctx, owner)
	if err != nil {
		s.logger.WarnContext(ctx, "Reload after write failed",
			log.NewFields().WithOwner(owner, false).WithError(err).ToSlice()...)
		return nil
	}
	s.Publish(owner, snapshot)
	return nil
}

// inBusiness is write scoped to a business the owner actually holds.
func (s *DocumentStore) inBusiness(ctx context.Context, owner, businessID string, fn func(tx *sql.Tx) error) error {
	return s.write(ctx, owner, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM businesses WHERE id = ? AND owner_id = ?`, businessID, owner).Scan(&n)
		if err != nil {
			return fmt.Errorf("check business: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
		}
		return fn(tx)
	})
}

func ensureOwner(ctx context.Context, q querier, owner string) error {
	if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO owners (id) VALUES (?)`, owner); err != nil {
		return fmt.Errorf("ensure owner: %w", err)
	}
	return nil
}

func (s *DocumentStore) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM owners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *DocumentStore) Load(ctx context.Context, owner string) ([]core.Business, error) {
	var out []core.Business
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = loadOwner(ctx, tx, owner)
		return err
	})
	return out, err
}

func loadOwner(ctx context.Context, q querier, owner string) ([]core.Business, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name FROM businesses WHERE owner_id = ? ORDER BY created_at, rowid`, owner)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	var bs []core.Business
	index := make(map[string]int)
	for rows.Next() {
		var b core.Business
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan business: %w", err)
		}
		index[b.ID] = len(bs)
		bs = append(bs, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(bs) == 0 {
		return bs, nil
	}

	if err := eachRow(ctx, q, `SELECT j.business_id, j.doc FROM jobs j
		JOIN businesses b ON b.id = j.business_id
		WHERE b.owner_id = ? ORDER BY j.rowid`, owner, func(rows *sql.Rows) error {
		var businessID, doc string
		if err := rows.Scan(&businessID, &doc); err != nil {
			return fmt.Errorf("scan job: %w", err)
		}
		var j core.Job
		if err := json.Unmarshal([]byte(doc), &j); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}
		b := &bs[index[businessID]]
		b.Jobs = append(b.Jobs, j)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, `SELECT i.business_id, i.id, i.title, i.date, i.amount FROM other_incomes i
		JOIN businesses b ON b.id = i.business_id
		WHERE b.owner_id = ? ORDER BY i.rowid`, owner, func(rows *sql.Rows) error {
		var businessID, id, title, date, amount string
		if err := rows.Scan(&businessID, &id, &title, &date, &amount); err != nil {
			return fmt.Errorf("scan income: %w", err)
		}
		d, _ := core.ParseDate(date)
		b := &bs[index[businessID]]
		b.OtherIncomes = append(b.OtherIncomes, core.OtherIncome{
			ID: id, Title: title, Date: d, Amount: core.ParseAmount(amount),
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, `SELECT e.business_id, e.id, e.title, e.date, e.amount FROM other_expenses e
		JOIN businesses b ON b.id = e.business_id
		WHERE b.owner_id = ? ORDER BY e.rowid`, owner, func(rows *sql.Rows) error {
		var businessID, id, title, date, amount string
		if err := rows.Scan(&businessID, &id, &title, &date, &amount); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		d, _ := core.ParseDate(date)
		b := &bs[index[businessID]]
		b.OtherExpenses = append(b.OtherExpenses, core.OtherExpense{
			ID: id, Title: title, Date: d, Amount: core.ParseAmount(amount),
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, `SELECT l.business_id, l.id, l.title, l.color FROM labels l
		JOIN businesses b ON b.id = l.business_id
		WHERE b.owner_id = ? ORDER BY l.rowid`, owner, func(rows *sql.Rows) error {
		var businessID string
		var l core.Label
		if err := rows.Scan(&businessID, &l.ID, &l.Title, &l.Color); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		b := &bs[index[businessID]]
		b.Labels = append(b.Labels, l)
		return nil
	}); err != nil {
		return nil, err
	}

	return bs, nil
}

func eachRow(ctx context.Context, q querier, query string, arg any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *DocumentStore) SaveBusiness(ctx context.Context, owner string, b core.Business) error {
	return s.write(ctx, owner, func(tx *sql.Tx) error {
		if err := ensureOwner(ctx, tx, owner); err != nil {
			return err
		}
		var holder string
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM businesses WHERE id = ?`, b.ID).Scan(&holder)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("check business: %w", err)
		case holder != owner:
			return fmt.Errorf("business %s: %w", b.ID, core.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO businesses (id, owner_id, name) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`, b.ID, owner, b.Name)
		if err != nil {
			return fmt.Errorf("save business: %w", err)
		}
		return nil
	})
}

func (s *DocumentStore) DeleteBusiness(ctx context.Context, owner, businessID string) error {
	return s.write(ctx, owner, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM businesses WHERE id = ? AND owner_id = ?`, businessID, owner)
		if err != nil {
			return fmt.Errorf("delete business: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		for _, table := range []string{"jobs", "other_incomes", "other_expenses", "labels"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE business_id = ?`, businessID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		return nil
	})
}

func putJob(ctx context.Context, tx *sql.Tx, businessID string, j core.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	var labelID any
	if j.LabelID != "" {
		labelID = j.LabelID
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO jobs (id, business_id, anchor_date, is_recurring, label_id, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id, id) DO UPDATE SET
			anchor_date = excluded.anchor_date,
			is_recurring = excluded.is_recurring,
			label_id = excluded.label_id,
			doc = excluded.doc`,
		j.ID, businessID, j.Date.String(), j.IsRecurring(), labelID, string(doc))
	if err != nil {
		return fmt.Errorf("put job %s: %w", j.ID, err)
	}
	return nil
}

func (s *DocumentStore) PutJob(ctx context.Context, owner, businessID string, j core.Job) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		return putJob(ctx, tx, businessID, j)
	})
}

func (s *DocumentStore) DeleteJob(ctx context.Context, owner, businessID, jobID string) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE business_id = ? AND id = ?`, businessID, jobID)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		return nil
	})
}

// DetachOccurrence writes the template carrying the new exception and the
// standalone job in the same transaction.
func (s *DocumentStore) DetachOccurrence(ctx context.Context, owner, businessID string, updated, standalone core.Job) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM jobs WHERE business_id = ? AND id = ?`, businessID, updated.ID).Scan(&n)
		if err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("job %s: %w", updated.ID, core.ErrNotFound)
		}
		if err := putJob(ctx, tx, businessID, updated); err != nil {
			return err
		}
		return putJob(ctx, tx, businessID, standalone)
	})
}

func (s *DocumentStore) PutIncome(ctx context.Context, owner, businessID string, in core.OtherIncome) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		return putEntry(ctx, tx, "other_incomes", businessID, in.ID, in.Title, in.Date, in.Amount)
	})
}

func (s *DocumentStore) DeleteIncome(ctx context.Context, owner, businessID, id string) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		return deleteRow(ctx, tx, "other_incomes", businessID, id)
	})
}

func (s *DocumentStore) PutExpense(ctx context.Context, owner, businessID string, ex core.OtherExpense) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		return putEntry(ctx, tx, "other_expenses", businessID, ex.ID, ex.Title, ex.Date, ex.Amount)
	})
}

func (s *DocumentStore) DeleteExpense(ctx context.Context, owner, businessID, id string) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		return deleteRow(ctx, tx, "other_expenses", businessID, id)
	})
}

func putEntry(ctx context.Context, tx *sql.Tx, table, businessID, id, title string, d core.Date, amount core.Amount) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (id, business_id, title, date, amount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(business_id, id) DO UPDATE SET
			title = excluded.title, date = excluded.date, amount = excluded.amount`,
		id, businessID, title, d.String(), amount.String())
	if err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	return nil
}

func deleteRow(ctx context.Context, tx *sql.Tx, table, businessID, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE business_id = ? AND id = ?`, businessID, id); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *DocumentStore) PutLabel(ctx context.Context, owner, businessID string, l core.Label) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO labels (id, business_id, title, color) VALUES (?, ?, ?, ?)
			ON CONFLICT(business_id, id) DO UPDATE SET title = excluded.title, color = excluded.color`,
			l.ID, businessID, l.Title, l.Color)
		if err != nil {
			return fmt.Errorf("put label: %w", err)
		}
		return nil
	})
}

// DeleteLabel drops the label and unsets labelId in every job document that
// pointed at it. Jobs themselves are kept.
func (s *DocumentStore) DeleteLabel(ctx context.Context, owner, businessID, labelID string) error {
	return s.inBusiness(ctx, owner, businessID, func(tx *sql.Tx) error {
		if err := deleteRow(ctx, tx, "labels", businessID, labelID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE jobs
			SET label_id = NULL, doc = json_remove(doc, '$.labelId')
			WHERE business_id = ? AND (label_id = ? OR json_extract(doc, '$.labelId') = ?)`,
			businessID, labelID, labelID)
		if err != nil {
			return fmt.Errorf("clear label references: %w", err)
		}
		return nil
	})
}

func (s *DocumentStore) Notified(ctx context.Context, owner string) (reminder.Set, error) {
	set := reminder.Set{}
	err := eachRow(ctx, s.db, `SELECT marker_key FROM reminder_markers WHERE owner_id = ?`, owner,
		func(rows *sql.Rows) error {
			var key string
			if err := rows.Scan(&key); err != nil {
				return fmt.Errorf("scan marker: %w", err)
			}
			set.Add(key)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	return set, nil
}

func (s *DocumentStore) Mark(ctx context.Context, owner string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureOwner(ctx, tx, owner); err != nil {
			return err
		}
		for _, k := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO reminder_markers (owner_id, marker_key) VALUES (?, ?)`, owner, k)
			if err != nil {
				return fmt.Errorf("mark %s: %w", k, err)
			}
		}
		return nil
	})
}

// SetProfile records where reminders for owner go.
func (s *DocumentStore) SetProfile(ctx context.Context, owner string, r reminder.Recipient) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO owners (id, email, telegram_chat_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, telegram_chat_id = excluded.telegram_chat_id`,
		owner, r.Email, r.ChatID)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *DocumentStore) Recipient(ctx context.Context, owner string) (reminder.Recipient, error) {
	var r reminder.Recipient
	err := s.db.QueryRowContext(ctx,
		`SELECT email, telegram_chat_id FROM owners WHERE id = ?`, owner).Scan(&r.Email, &r.ChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Recipient{}, nil
	}
	if err != nil {
		return reminder.Recipient{}, fmt.Errorf("load profile: %w", err)
	}
	return r, nil
}
