package product

import (
	"context"
	"database/sql"
	"errors"

	"panol-backend/internal/platform/db"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	Insert(ctx context.Context, p *Product) error
	Overwrite(ctx context.Context, p *Product) error
	ExecRenameWithRelocation(ctx context.Context, relocateID int64, relocatedName string, p *Product) error
	SoftDelete(ctx context.Context, id int64) (int64, error)
	ListActiveByName(ctx context.Context) ([]Product, error)
	ListAvailable(ctx context.Context) ([]Product, error)
	ListCritical(ctx context.Context) ([]Product, error)
}

type sqlStore struct{ db *sql.DB }

func NewStore(conn *sql.DB) Store { return &sqlStore{db: conn} }

const productCols = `product_id, name, description, stock, critical_stock, fungible, active`

func scanProduct(row *sql.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ProductID, &p.Name, &p.Description, &p.Stock, &p.CriticalStock, &p.Fungible, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlStore) GetByID(ctx context.Context, id int64) (*Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE product_id = ?`
	return scanProduct(s.db.QueryRowContext(ctx, q, id))
}

func (s *sqlStore) GetByName(ctx context.Context, name string) (*Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE name = ?`
	return scanProduct(s.db.QueryRowContext(ctx, q, name))
}

func (s *sqlStore) Insert(ctx context.Context, p *Product) error {
	const q = `
INSERT INTO products (name, description, stock, critical_stock, fungible, active)
VALUES (?, ?, ?, ?, ?, 1)`
	res, err := s.db.ExecContext(ctx, q, p.Name, p.Description, p.Stock, p.CriticalStock, p.Fungible)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.ProductID = id
	p.Active = true
	return nil
}

// Overwrite replaces every mutable column. Used both by plain updates and by
// the reactivate-inactive-row path on create.
func (s *sqlStore) Overwrite(ctx context.Context, p *Product) error {
	const q = `
UPDATE products
SET name = ?, description = ?, stock = ?, critical_stock = ?, fungible = ?, active = ?
WHERE product_id = ?`
	res, err := s.db.ExecContext(ctx, q, p.Name, p.Description, p.Stock, p.CriticalStock, p.Fungible, p.Active, p.ProductID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrNotFound("No se encontró el producto")
	}
	return nil
}

// ExecRenameWithRelocation moves an inactive row out of the way (its name
// gets the "-{id}" suffix) and applies the update in one transaction, so the
// unique index on name never sees both rows with the same value.
func (s *sqlStore) ExecRenameWithRelocation(ctx context.Context, relocateID int64, relocatedName string, p *Product) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET name = ? WHERE product_id = ?`, relocatedName, relocateID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE products
SET name = ?, description = ?, stock = ?, critical_stock = ?, fungible = ?, active = ?
WHERE product_id = ?`,
			p.Name, p.Description, p.Stock, p.CriticalStock, p.Fungible, p.Active, p.ProductID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff != 1 {
			return ErrNotFound("No se encontró el producto")
		}
		return nil
	})
}

func (s *sqlStore) SoftDelete(ctx context.Context, id int64) (int64, error) {
	const q = `UPDATE products SET active = 0 WHERE product_id = ? AND active = 1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) list(ctx context.Context, q string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Description, &p.Stock, &p.CriticalStock, &p.Fungible, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListActiveByName(ctx context.Context) ([]Product, error) {
	return s.list(ctx, `SELECT `+productCols+` FROM products WHERE active = 1 ORDER BY name ASC`)
}

func (s *sqlStore) ListAvailable(ctx context.Context) ([]Product, error) {
	return s.list(ctx, `SELECT `+productCols+` FROM products WHERE active = 1 AND stock > 0 ORDER BY name ASC`)
}

func (s *sqlStore) ListCritical(ctx context.Context) ([]Product, error) {
	return s.list(ctx, `SELECT `+productCols+` FROM products WHERE active = 1 AND stock <= critical_stock ORDER BY name ASC`)
}
