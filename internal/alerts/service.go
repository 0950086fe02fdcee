package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ===== Error model (same shape as lending/product) =====

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

const recentListMax = 30

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

func NewService(conn *sql.DB, logger *zap.Logger) *Service {
	return &Service{store: NewStore(conn), clock: realClock{}, logger: logger}
}

// CreateDaily creates the summary alert for the given date unless one
// already exists, in which case the existing alert is returned. The
// description reports how many lendings are still Active.
func (s *Service) CreateDaily(ctx context.Context, day time.Time, name string) (AlertResponse, error) {
	date := day.Format("2006-01-02")

	existing, err := s.store.GetByDate(ctx, date)
	if err != nil {
		return AlertResponse{}, err
	}
	if existing != nil {
		return toResponse(existing), nil
	}

	ids, err := s.store.ActiveLendingIDs(ctx)
	if err != nil {
		return AlertResponse{}, err
	}

	a := Alert{
		AlertOn: date,
		Name:    name,
		Description: fmt.Sprintf("El día %d-%d-%d hubieron %d prestamos sin devolver",
			day.Day(), int(day.Month()), day.Year(), len(ids)),
	}
	if err := s.store.ExecCreate(ctx, &a, ids); err != nil {
		return AlertResponse{}, err
	}

	s.logger.Info("daily alert created",
		zap.String("date", date), zap.Int("active_lendings", len(ids)))
	return toResponse(&a), nil
}

// Create handles the HTTP path; the date may come as a bare calendar date
// or a full timestamp.
func (s *Service) Create(ctx context.Context, in CreateAlertRequest) (AlertResponse, error) {
	day, err := parseDate(in.Date)
	if err != nil {
		return AlertResponse{}, ErrInvalid("La fecha de la alerta no es válida")
	}
	return s.CreateDaily(ctx, day, in.Name)
}

func (s *Service) MarkViewed(ctx context.Context, id int64) (AlertResponse, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return AlertResponse{}, err
	}
	if a == nil {
		return AlertResponse{}, ErrInvalid("La alerta que se intenta ver no existe")
	}
	if _, err := s.store.MarkSeen(ctx, id); err != nil {
		return AlertResponse{}, err
	}
	a.Seen = true
	return toResponse(a), nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalid("La alerta que se intenta eliminar ya no existe")
	}
	return nil
}

func (s *Service) ListRecent(ctx context.Context) ([]AlertResponse, error) {
	items, err := s.store.ListRecent(ctx, recentListMax)
	if err != nil {
		return nil, err
	}
	out := make([]AlertResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
