package users

import (
	"context"
	"database/sql"
	"errors"

	"panol-backend/internal/platform/db"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (*BorrowerDetail, error)
	GetByRut(ctx context.Context, rut string) (*BorrowerDetail, error)
	ExecCreate(ctx context.Context, b *Borrower, degreeCode, role *string) error
	ExecUpdate(ctx context.Context, b *Borrower, degreeCode, role *string) error
	SoftDelete(ctx context.Context, id int64) (int64, error)
	ListAll(ctx context.Context) ([]BorrowerDetail, error)
	ListActiveByType(ctx context.Context, borrowerType string) ([]BorrowerDetail, error)
	ListDegrees(ctx context.Context) ([]Degree, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(conn *sql.DB) Store { return &sqlStore{db: conn} }

const detailQuery = `
SELECT b.borrower_id, b.rut, b.name, b.mail, b.phone, b.type, b.active,
       s.degree_code, a.role
FROM borrowers b
LEFT JOIN students s ON s.borrower_id = b.borrower_id
LEFT JOIN assistants a ON a.borrower_id = b.borrower_id`

func scanDetail(sc interface{ Scan(dest ...any) error }) (*BorrowerDetail, error) {
	var d BorrowerDetail
	err := sc.Scan(&d.BorrowerID, &d.Rut, &d.Name, &d.Mail, &d.Phone, &d.Type, &d.Active,
		&d.DegreeCode, &d.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *sqlStore) GetByID(ctx context.Context, id int64) (*BorrowerDetail, error) {
	return scanDetail(s.db.QueryRowContext(ctx, detailQuery+` WHERE b.borrower_id = ?`, id))
}

func (s *sqlStore) GetByRut(ctx context.Context, rut string) (*BorrowerDetail, error) {
	return scanDetail(s.db.QueryRowContext(ctx, detailQuery+` WHERE b.rut = ?`, rut))
}

// ExecCreate inserts the borrower and its satellite row atomically.
func (s *sqlStore) ExecCreate(ctx context.Context, b *Borrower, degreeCode, role *string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO borrowers (rut, name, mail, phone, type, active)
VALUES (?, ?, ?, ?, ?, 1)`,
			b.Rut, b.Name, b.Mail, b.Phone, b.Type)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		b.BorrowerID = id
		b.Active = true

		switch b.Type {
		case TypeStudent:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO students (borrower_id, degree_code) VALUES (?, ?)`, id, degreeCode)
		case TypeTeacher:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO teachers (borrower_id) VALUES (?)`, id)
		case TypeAssistant:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO assistants (borrower_id, role) VALUES (?, ?)`, id, role)
		}
		return err
	})
}

// ExecUpdate updates borrower columns and the satellite for its type.
func (s *sqlStore) ExecUpdate(ctx context.Context, b *Borrower, degreeCode, role *string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `
UPDATE borrowers SET name = ?, mail = ?, phone = ? WHERE borrower_id = ?`,
			b.Name, b.Mail, b.Phone, b.BorrowerID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		_ = aff // no-op updates report 0 affected rows on MySQL

		switch b.Type {
		case TypeStudent:
			if degreeCode != nil {
				_, err = tx.ExecContext(ctx,
					`UPDATE students SET degree_code = ? WHERE borrower_id = ?`, *degreeCode, b.BorrowerID)
			}
		case TypeAssistant:
			if role != nil {
				_, err = tx.ExecContext(ctx,
					`UPDATE assistants SET role = ? WHERE borrower_id = ?`, *role, b.BorrowerID)
			}
		}
		return err
	})
}

func (s *sqlStore) SoftDelete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE borrowers SET active = 0 WHERE borrower_id = ? AND active = 1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) queryDetails(ctx context.Context, q string, args ...any) ([]BorrowerDetail, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BorrowerDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListAll(ctx context.Context) ([]BorrowerDetail, error) {
	return s.queryDetails(ctx, detailQuery+` ORDER BY b.name ASC`)
}

func (s *sqlStore) ListActiveByType(ctx context.Context, borrowerType string) ([]BorrowerDetail, error) {
	return s.queryDetails(ctx, detailQuery+` WHERE b.active = 1 AND b.type = ? ORDER BY b.name ASC`, borrowerType)
}

func (s *sqlStore) ListDegrees(ctx context.Context) ([]Degree, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT degree_code, name FROM degrees ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Degree
	for rows.Next() {
		var d Degree
		if err := rows.Scan(&d.Code, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
