package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ===== Error model (same shape as product/lending) =====

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

var upperES = cases.Upper(language.Spanish)

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(conn *sql.DB, logger *zap.Logger) *Service {
	return &Service{store: NewStore(conn), logger: logger}
}

func normalizeUpper(s string) string {
	return upperES.String(norm.NFC.String(strings.TrimSpace(s)))
}

// Create registers a borrower with its type satellite. An existing rut
// returns the stored borrower unchanged.
func (s *Service) Create(ctx context.Context, in CreateUserRequest) (UserResponse, error) {
	rut := normalizeUpper(in.Rut)
	name := normalizeUpper(in.Name)
	if rut == "" || name == "" {
		return UserResponse{}, ErrInvalid("rut y nombre son obligatorios")
	}
	if !validType(in.Type) {
		return UserResponse{}, ErrInvalid("El tipo de usuario no es válido")
	}
	if in.Type == TypeStudent && (in.Degree == nil || strings.TrimSpace(*in.Degree) == "") {
		return UserResponse{}, ErrInvalid("Un estudiante debe tener una carrera")
	}

	existing, err := s.store.GetByRut(ctx, rut)
	if err != nil {
		return UserResponse{}, err
	}
	if existing != nil {
		return toResponse(existing), nil
	}

	b := Borrower{
		Rut:   rut,
		Name:  name,
		Phone: in.PhoneNumber,
		Type:  in.Type,
	}
	if in.Mail != nil {
		mail := strings.ToLower(strings.TrimSpace(*in.Mail))
		b.Mail = &mail
	}

	if err := s.store.ExecCreate(ctx, &b, in.Degree, in.Role); err != nil {
		return UserResponse{}, err
	}
	s.logger.Info("borrower created",
		zap.Int64("borrower_id", b.BorrowerID),
		zap.String("rut", b.Rut),
		zap.String("type", b.Type))

	return toResponse(&BorrowerDetail{Borrower: b, DegreeCode: in.Degree, Role: in.Role}), nil
}

// Update edits borrower data. The type is immutable: changing it would
// orphan the satellite row.
func (s *Service) Update(ctx context.Context, id int64, in UpdateUserRequest) (UserResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if current == nil {
		return UserResponse{}, ErrNotFound("El usuario que se intenta actualizar no existe")
	}

	b := current.Borrower
	if in.Name != nil {
		b.Name = normalizeUpper(*in.Name)
		if b.Name == "" {
			return UserResponse{}, ErrInvalid("El nombre no puede estar vacío")
		}
	}
	if in.Mail != nil {
		mail := strings.ToLower(strings.TrimSpace(*in.Mail))
		b.Mail = &mail
	}
	if in.PhoneNumber != nil {
		b.Phone = in.PhoneNumber
	}

	if err := s.store.ExecUpdate(ctx, &b, in.Degree, in.Role); err != nil {
		return UserResponse{}, err
	}

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	return toResponse(updated), nil
}

// Delete deactivates a borrower.
func (s *Service) Delete(ctx context.Context, id int64) (UserResponse, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if current == nil {
		return UserResponse{}, ErrInvalid("El usuario que se intenta eliminar no existe")
	}
	if _, err := s.store.SoftDelete(ctx, id); err != nil {
		return UserResponse{}, err
	}
	current.Active = false
	s.logger.Info("borrower deactivated", zap.Int64("borrower_id", id))
	return toResponse(current), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (UserResponse, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if d == nil {
		return UserResponse{}, ErrInvalid("El usuario que se intenta obtener no existe")
	}
	return toResponse(d), nil
}

func (s *Service) ListAll(ctx context.Context) ([]UserResponse, error) {
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListByType(ctx context.Context, borrowerType string) ([]UserResponse, error) {
	items, err := s.store.ListActiveByType(ctx, borrowerType)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListDegrees(ctx context.Context) ([]DegreeResponse, error) {
	degrees, err := s.store.ListDegrees(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DegreeResponse, 0, len(degrees))
	for _, d := range degrees {
		out = append(out, DegreeResponse{Code: d.Code, Name: d.Name})
	}
	return out, nil
}
