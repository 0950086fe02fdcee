package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== Service =====

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(conn *sql.DB, logger *zap.Logger) *Service {
	return &Service{store: NewStore(conn), logger: logger}
}

// normalizeName trims and NFC-normalizes, so "café" typed on different
// platforms compares equal under the unique index.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Create registers a product. A previously deleted product with the same
// name is overwritten in place and reactivated instead of inserting a
// duplicate row.
func (s *Service) Create(ctx context.Context, in CreateProductRequest) (ProductResponse, error) {
	name := normalizeName(in.Name)
	if name == "" {
		return ProductResponse{}, ErrInvalid("Ingresa un nombre del producto")
	}

	p := Product{
		Name:          name,
		Stock:         0,
		CriticalStock: 1,
		Active:        true,
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.CriticalStock != nil {
		p.CriticalStock = *in.CriticalStock
	}
	if in.Fungible != nil {
		p.Fungible = *in.Fungible
	}

	if p.Stock < 0 {
		return ProductResponse{}, ErrInvalid("El stock debe ser un número igual o mayor a 0")
	}
	if p.CriticalStock < 1 {
		return ProductResponse{}, ErrInvalid("El stock crítico debe ser un número igual o mayor a 1")
	}

	existing, err := s.store.GetByName(ctx, name)
	if err != nil {
		return ProductResponse{}, err
	}
	if existing != nil {
		if existing.Active {
			return ProductResponse{}, ErrInvalid("Ya existe un producto con ese nombre")
		}
		// reuse the inactive row
		p.ProductID = existing.ProductID
		if err := s.store.Overwrite(ctx, &p); err != nil {
			return ProductResponse{}, err
		}
		s.logger.Info("product reactivated",
			zap.Int64("product_id", p.ProductID), zap.String("name", p.Name))
		return toResponse(&p), nil
	}

	if err := s.store.Insert(ctx, &p); err != nil {
		return ProductResponse{}, err
	}
	s.logger.Info("product created",
		zap.Int64("product_id", p.ProductID), zap.String("name", p.Name))
	return toResponse(&p), nil
}

// Update edits a product. Renaming onto an active product's name fails;
// renaming onto an inactive product's name relocates that row first.
func (s *Service) Update(ctx context.Context, id int64, in UpdateProductRequest) (ProductResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ProductResponse{}, err
	}
	if current == nil {
		return ProductResponse{}, ErrNotFound("No se encontró el producto")
	}

	p := *current
	if in.Name != nil {
		p.Name = normalizeName(*in.Name)
		if p.Name == "" {
			return ProductResponse{}, ErrInvalid("Ingresa un nombre del producto")
		}
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.CriticalStock != nil {
		p.CriticalStock = *in.CriticalStock
	}
	if in.Fungible != nil {
		p.Fungible = *in.Fungible
	}

	if p.Stock < 0 {
		return ProductResponse{}, ErrInvalid("El stock debe ser un número igual o mayor a 0")
	}
	if p.CriticalStock < 1 {
		return ProductResponse{}, ErrInvalid("El stock crítico debe ser un número igual o mayor a 1")
	}

	if p.Name != current.Name {
		other, err := s.store.GetByName(ctx, p.Name)
		if err != nil {
			return ProductResponse{}, err
		}
		if other != nil && other.ProductID != p.ProductID {
			if other.Active {
				return ProductResponse{}, ErrConflict("Ya existe un producto activo con ese nombre")
			}
			// the inactive row keeps its history under a suffixed name
			relocated := fmt.Sprintf("%s-%d", other.Name, other.ProductID)
			if err := s.store.ExecRenameWithRelocation(ctx, other.ProductID, relocated, &p); err != nil {
				return ProductResponse{}, err
			}
			s.logger.Info("product renamed over inactive row",
				zap.Int64("product_id", p.ProductID),
				zap.Int64("relocated_id", other.ProductID),
				zap.String("name", p.Name))
			return toResponse(&p), nil
		}
	}

	if err := s.store.Overwrite(ctx, &p); err != nil {
		return ProductResponse{}, err
	}
	return toResponse(&p), nil
}

// Delete deactivates a product. Stock numbers are untouched.
func (s *Service) Delete(ctx context.Context, id int64) (ProductResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ProductResponse{}, err
	}
	if current == nil || !current.Active {
		return ProductResponse{}, ErrNotFound("No se encontró el producto")
	}
	if _, err := s.store.SoftDelete(ctx, id); err != nil {
		return ProductResponse{}, err
	}
	current.Active = false
	s.logger.Info("product deactivated", zap.Int64("product_id", id))
	return toResponse(current), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (ProductResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ProductResponse{}, err
	}
	if p == nil {
		return ProductResponse{}, ErrNotFound("No se encontro ese producto")
	}
	return toResponse(p), nil
}

func (s *Service) ListActive(ctx context.Context) ([]ProductResponse, error) {
	items, err := s.store.ListActiveByName(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListAvailable(ctx context.Context) ([]ProductResponse, error) {
	items, err := s.store.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListCritical(ctx context.Context) ([]ProductResponse, error) {
	items, err := s.store.ListCritical(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}
