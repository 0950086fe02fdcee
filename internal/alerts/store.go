package alerts

import (
	"context"
	"database/sql"
	"errors"

	"panol-backend/internal/platform/db"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (*Alert, error)
	GetByDate(ctx context.Context, date string) (*Alert, error)
	ActiveLendingIDs(ctx context.Context) ([]int64, error)
	ExecCreate(ctx context.Context, a *Alert, lendingIDs []int64) error
	MarkSeen(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Alert, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(conn *sql.DB) Store { return &sqlStore{db: conn} }

const alertCols = `alert_id, DATE_FORMAT(alert_on, '%Y-%m-%d'), name, description, seen`

func scanAlert(row *sql.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.AlertID, &a.AlertOn, &a.Name, &a.Description, &a.Seen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *sqlStore) GetByID(ctx context.Context, id int64) (*Alert, error) {
	return scanAlert(s.db.QueryRowContext(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE alert_id = ?`, id))
}

func (s *sqlStore) GetByDate(ctx context.Context, date string) (*Alert, error) {
	return scanAlert(s.db.QueryRowContext(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE alert_on = ?`, date))
}

func (s *sqlStore) ActiveLendingIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lending_id FROM lendings WHERE state = 'Active'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ExecCreate inserts the alert and links the counted lendings atomically.
func (s *sqlStore) ExecCreate(ctx context.Context, a *Alert, lendingIDs []int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO alerts (alert_on, name, description, seen) VALUES (?, ?, ?, 0)`,
			a.AlertOn, a.Name, a.Description)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		a.AlertID = id

		for _, lid := range lendingIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO alert_lendings (alert_id, lending_id) VALUES (?, ?)`, id, lid); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqlStore) MarkSeen(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET seen = 1 WHERE alert_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) Delete(ctx context.Context, id int64) (int64, error) {
	// alert_lendings rows go with it via ON DELETE CASCADE
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE alert_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) ListRecent(ctx context.Context, limit int) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertCols+` FROM alerts ORDER BY alert_on DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.AlertID, &a.AlertOn, &a.Name, &a.Description, &a.Seen); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
