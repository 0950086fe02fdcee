package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"panol-backend/internal/platform/db"
)

type Store interface {
	BorrowerExists(ctx context.Context, id int64) (bool, error)
	TeacherExists(ctx context.Context, id int64) (bool, error)
	GetLending(ctx context.Context, id int64) (*Lending, error)
	ExecCreate(ctx context.Context, l *Lending, items []LineItem) error
	ExecUpdate(ctx context.Context, id int64, teacherID *int64, comments *string, items []LineItem) (*Lending, error)
	ExecClose(ctx context.Context, id int64, toState string, comments *string, at time.Time) (*Lending, error)
	ExecDeletePermanently(ctx context.Context, id int64) error
	ApprovePending(ctx context.Context, id int64) (int64, error)
	ListActive(ctx context.Context) ([]LendingSummary, error)
	ListPending(ctx context.Context) ([]LendingSummary, error)
	ListFinalized(ctx context.Context, limit int) ([]LendingSummary, error)
	GetDetail(ctx context.Context, id int64) (*LendingDetail, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(conn *sql.DB) Store { return &sqlStore{db: conn} }

// ---- row helpers ----

type lendingRow struct {
	LendingID    int64
	LendingULID  string
	BorrowerID   int64
	TeacherID    sql.NullInt64
	State        string
	Comments     sql.NullString
	CreatedAt    time.Time
	FinalizedAt  sql.NullTime
	EliminatedAt sql.NullTime
}

func (r *lendingRow) toModel() Lending {
	l := Lending{
		LendingID:   r.LendingID,
		LendingULID: r.LendingULID,
		BorrowerID:  r.BorrowerID,
		State:       r.State,
		CreatedAt:   r.CreatedAt,
	}
	if r.TeacherID.Valid {
		v := r.TeacherID.Int64
		l.TeacherID = &v
	}
	if r.Comments.Valid {
		v := r.Comments.String
		l.Comments = &v
	}
	if r.FinalizedAt.Valid {
		v := r.FinalizedAt.Time
		l.FinalizedAt = &v
	}
	if r.EliminatedAt.Valid {
		v := r.EliminatedAt.Time
		l.EliminatedAt = &v
	}
	return l
}

const lendingCols = `lending_id, lending_ulid, borrower_id, teacher_id, state, comments, created_at, finalized_at, eliminated_at`

func scanLending(sc interface{ Scan(dest ...any) error }) (*Lending, error) {
	var r lendingRow
	err := sc.Scan(&r.LendingID, &r.LendingULID, &r.BorrowerID, &r.TeacherID,
		&r.State, &r.Comments, &r.CreatedAt, &r.FinalizedAt, &r.EliminatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l := r.toModel()
	return &l, nil
}

// ---- existence checks ----

func (s *sqlStore) BorrowerExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrowers WHERE borrower_id = ? AND active = 1`, id).Scan(&n)
	return n > 0, err
}

func (s *sqlStore) TeacherExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrowers WHERE borrower_id = ? AND active = 1 AND type = 'Teacher'`, id).Scan(&n)
	return n > 0, err
}

func (s *sqlStore) GetLending(ctx context.Context, id int64) (*Lending, error) {
	return scanLending(s.db.QueryRowContext(ctx,
		`SELECT `+lendingCols+` FROM lendings WHERE lending_id = ?`, id))
}

// ---- in-transaction primitives ----

// lockProduct takes a row lock on the product so concurrent lendings
// serialize on the stock check.
func lockProduct(ctx context.Context, tx db.DBTX, productID int64) (stock int, fungible bool, err error) {
	const q = `SELECT stock, fungible FROM products WHERE product_id = ? AND active = 1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, productID).Scan(&stock, &fungible)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrNotFound(fmt.Sprintf("El producto %d no existe", productID))
	}
	return stock, fungible, err
}

func addStock(ctx context.Context, tx db.DBTX, productID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE product_id = ? AND stock + ? >= 0`,
		delta, productID, delta)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal(fmt.Sprintf("no se pudo actualizar el stock del producto %d", productID))
	}
	return nil
}

func lockLending(ctx context.Context, tx db.DBTX, id int64) (*Lending, error) {
	l, err := scanLending(tx.QueryRowContext(ctx,
		`SELECT `+lendingCols+` FROM lendings WHERE lending_id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound("Préstamo no encontrado")
	}
	return l, nil
}

func lineDetails(ctx context.Context, tx db.DBTX, lendingID int64) ([]LineDetail, error) {
	const q = `
SELECT lp.product_id, lp.amount, p.name, p.fungible
FROM lending_products lp
JOIN products p ON p.product_id = lp.product_id
WHERE lp.lending_id = ?
ORDER BY lp.product_id`
	rows, err := tx.QueryContext(ctx, q, lendingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineDetail
	for rows.Next() {
		var d LineDetail
		if err := rows.Scan(&d.ProductID, &d.Amount, &d.Name, &d.Fungible); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- transactional operations ----

// ExecCreate reserves stock and persists the lending with its line items,
// all-or-nothing.
func (s *sqlStore) ExecCreate(ctx context.Context, l *Lending, items []LineItem) error {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	// lock products in a fixed order so concurrent creates cannot deadlock
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		for _, it := range sorted {
			stock, _, err := lockProduct(ctx, tx, it.ProductID)
			if err != nil {
				return err
			}
			if err := checkAvailability(it.ProductID, it.Amount, stock, 0); err != nil {
				return err
			}
			if err := addStock(ctx, tx, it.ProductID, -it.Amount); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO lendings (lending_ulid, borrower_id, teacher_id, state, comments, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			l.LendingULID, l.BorrowerID, nullInt(l.TeacherID), l.State, nullStr(l.Comments), l.CreatedAt)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		l.LendingID = id

		for _, it := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lending_products (lending_id, product_id, amount) VALUES (?, ?, ?)`,
				id, it.ProductID, it.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExecUpdate reconciles the stored line items against the requested set and
// applies the net stock delta in the same transaction.
func (s *sqlStore) ExecUpdate(ctx context.Context, id int64, teacherID *int64, comments *string, items []LineItem) (*Lending, error) {
	var updated *Lending
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := lockLending(ctx, tx, id)
		if err != nil {
			return err
		}
		if !isOpen(l.State) {
			return ErrConflict("El préstamo ya no se puede modificar")
		}

		old, err := lineDetails(ctx, tx, id)
		if err != nil {
			return err
		}

		changes := planReconcile(old, items)
		sort.Slice(changes, func(i, j int) bool { return changes[i].ProductID < changes[j].ProductID })
		for _, c := range changes {
			stock, fungible, err := lockProduct(ctx, tx, c.ProductID)
			if err != nil {
				if c.Next == 0 {
					// the product of a removed line may have been
					// deactivated since the lending was created
					continue
				}
				return err
			}
			c.Fungible = fungible
			if c.Next > 0 {
				if err := checkAvailability(c.ProductID, c.Next, stock, c.Prev); err != nil {
					return err
				}
			}
			if err := addStock(ctx, tx, c.ProductID, c.stockDelta()); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM lending_products WHERE lending_id = ?`, id); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lending_products (lending_id, product_id, amount) VALUES (?, ?, ?)`,
				id, it.ProductID, it.Amount); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE lendings
SET teacher_id = COALESCE(?, teacher_id), comments = COALESCE(?, comments)
WHERE lending_id = ?`,
			nullInt(teacherID), nullStr(comments), id); err != nil {
			return err
		}

		updated, err = scanLending(tx.QueryRowContext(ctx,
			`SELECT `+lendingCols+` FROM lendings WHERE lending_id = ?`, id))
		return err
	})
	return updated, err
}

// ExecClose moves an open lending to Finalized or Inactive and restores
// stock for non-fungible lines.
func (s *sqlStore) ExecClose(ctx context.Context, id int64, toState string, comments *string, at time.Time) (*Lending, error) {
	var updated *Lending
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := lockLending(ctx, tx, id)
		if err != nil {
			return err
		}
		if !isOpen(l.State) {
			return ErrConflict("El préstamo ya está cerrado")
		}

		lines, err := lineDetails(ctx, tx, id)
		if err != nil {
			return err
		}

		switch toState {
		case StateFinalized:
			_, err = tx.ExecContext(ctx, `
UPDATE lendings SET state = ?, finalized_at = ?, comments = COALESCE(?, comments)
WHERE lending_id = ?`, StateFinalized, at, nullStr(comments), id)
		case StateInactive:
			_, err = tx.ExecContext(ctx, `
UPDATE lendings SET state = ?, eliminated_at = ? WHERE lending_id = ?`, StateInactive, at, id)
		default:
			err = ErrInternal("estado de cierre no válido")
		}
		if err != nil {
			return err
		}

		for _, r := range restockOnClose(lines) {
			if err := addStock(ctx, tx, r.ProductID, r.Amount); err != nil {
				return err
			}
		}

		updated, err = scanLending(tx.QueryRowContext(ctx,
			`SELECT `+lendingCols+` FROM lendings WHERE lending_id = ?`, id))
		return err
	})
	return updated, err
}

// ExecDeletePermanently is the reject path: restore stock, drop the line
// items, drop the row. Only a Pending lending can be rejected.
func (s *sqlStore) ExecDeletePermanently(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := lockLending(ctx, tx, id)
		if err != nil {
			return err
		}
		if l.State != StatePending {
			return ErrConflict("Solo se puede eliminar permanentemente un préstamo pendiente")
		}

		lines, err := lineDetails(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, r := range restockOnClose(lines) {
			if err := addStock(ctx, tx, r.ProductID, r.Amount); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM lending_products WHERE lending_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM lendings WHERE lending_id = ?`, id)
		return err
	})
}

func (s *sqlStore) ApprovePending(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lendings SET state = ? WHERE lending_id = ? AND state = ?`,
		StateActive, id, StatePending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- queries ----

const summaryQuery = `
SELECT l.lending_id, l.lending_ulid, l.borrower_id, l.teacher_id, l.state, l.comments,
       l.created_at, l.finalized_at, l.eliminated_at,
       b.name, tb.name
FROM lendings l
JOIN borrowers b ON b.borrower_id = l.borrower_id
LEFT JOIN borrowers tb ON tb.borrower_id = l.teacher_id`

func (s *sqlStore) querySummaries(ctx context.Context, q string, args ...any) ([]LendingSummary, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LendingSummary
	for rows.Next() {
		var r lendingRow
		var borrowerName string
		var teacherName sql.NullString
		if err := rows.Scan(&r.LendingID, &r.LendingULID, &r.BorrowerID, &r.TeacherID,
			&r.State, &r.Comments, &r.CreatedAt, &r.FinalizedAt, &r.EliminatedAt,
			&borrowerName, &teacherName); err != nil {
			return nil, err
		}
		sum := LendingSummary{Lending: r.toModel(), BorrowerName: borrowerName}
		if teacherName.Valid {
			v := teacherName.String
			sum.TeacherName = &v
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListActive(ctx context.Context) ([]LendingSummary, error) {
	return s.querySummaries(ctx, summaryQuery+` WHERE l.state = 'Active' ORDER BY l.created_at DESC`)
}

func (s *sqlStore) ListPending(ctx context.Context) ([]LendingSummary, error) {
	return s.querySummaries(ctx, summaryQuery+` WHERE l.state = 'Pending' ORDER BY l.created_at DESC`)
}

func (s *sqlStore) ListFinalized(ctx context.Context, limit int) ([]LendingSummary, error) {
	return s.querySummaries(ctx, summaryQuery+` WHERE l.state = 'Finalized' ORDER BY l.finalized_at DESC LIMIT ?`, limit)
}

func (s *sqlStore) GetDetail(ctx context.Context, id int64) (*LendingDetail, error) {
	const q = `
SELECT l.lending_id, l.lending_ulid, l.borrower_id, l.teacher_id, l.state, l.comments,
       l.created_at, l.finalized_at, l.eliminated_at,
       b.name, b.rut, tb.name
FROM lendings l
JOIN borrowers b ON b.borrower_id = l.borrower_id
LEFT JOIN borrowers tb ON tb.borrower_id = l.teacher_id
WHERE l.lending_id = ?`

	var d *LendingDetail
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var r lendingRow
		var borrowerName, borrowerRut string
		var teacherName sql.NullString
		err := tx.QueryRowContext(ctx, q, id).Scan(&r.LendingID, &r.LendingULID, &r.BorrowerID,
			&r.TeacherID, &r.State, &r.Comments, &r.CreatedAt, &r.FinalizedAt, &r.EliminatedAt,
			&borrowerName, &borrowerRut, &teacherName)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		d = &LendingDetail{Lending: r.toModel(), BorrowerName: borrowerName, BorrowerRut: borrowerRut}
		if teacherName.Valid {
			v := teacherName.String
			d.TeacherName = &v
		}

		lines, err := lineDetails(ctx, tx, id)
		if err != nil {
			return err
		}
		d.Lines = lines
		return nil
	})
	return d, err
}

// ---- null helpers ----

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
