package lending

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"go.uber.org/zap"
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

// ===== Clock & ID =====

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ===== Service =====

const finalizedListMax = 50

type Service struct {
	store  Store
	clock  Clock
	id     IDGen
	logger *zap.Logger
}

func NewService(conn *sql.DB, logger *zap.Logger) *Service {
	return &Service{
		store:  NewStore(conn),
		clock:  realClock{},
		id:     ulidGen{},
		logger: logger,
	}
}

// Create opens a lending. With a teacher it starts Pending (awaiting
// approval), otherwise Active. Stock is reserved in the same transaction
// that persists the record.
func (s *Service) Create(ctx context.Context, in CreateLendingRequest) (LendingResponse, error) {
	items := toLineItems(in.Products)
	if err := validateLineItems(items); err != nil {
		return LendingResponse{}, err
	}

	if in.TeacherID != nil {
		ok, err := s.store.TeacherExists(ctx, *in.TeacherID)
		if err != nil {
			return LendingResponse{}, err
		}
		if !ok {
			return LendingResponse{}, ErrNotFound("Ese profesor no existe")
		}
	}

	ok, err := s.store.BorrowerExists(ctx, in.BorrowerID)
	if err != nil {
		return LendingResponse{}, err
	}
	if !ok {
		return LendingResponse{}, ErrNotFound("Ese prestatario no existe")
	}

	state := StateActive
	if in.TeacherID != nil {
		state = StatePending
	}

	now := s.clock.Now()
	l := Lending{
		LendingULID: s.id.NewULID(now),
		BorrowerID:  in.BorrowerID,
		TeacherID:   in.TeacherID,
		State:       state,
		Comments:    in.Comments,
		CreatedAt:   now,
	}

	if err := s.store.ExecCreate(ctx, &l, items); err != nil {
		return LendingResponse{}, err
	}

	s.logger.Info("lending created",
		zap.Int64("lending_id", l.LendingID),
		zap.String("ulid", l.LendingULID),
		zap.String("state", l.State),
		zap.Int("products", len(items)))

	resp := toResponse(&l)
	resp.Products = toLineResponses(in.Products)
	return resp, nil
}

// Update replaces the line-item set of an open lending. Availability for a
// retained product is checked against stock plus its own previous
// reservation, so a hold is never counted against itself.
func (s *Service) Update(ctx context.Context, id int64, in UpdateLendingRequest) (LendingResponse, error) {
	items := toLineItems(in.Products)
	if err := validateLineItems(items); err != nil {
		return LendingResponse{}, err
	}

	current, err := s.store.GetLending(ctx, id)
	if err != nil {
		return LendingResponse{}, err
	}
	if current == nil {
		return LendingResponse{}, ErrNotFound("Préstamo no encontrado")
	}
	if !isOpen(current.State) {
		return LendingResponse{}, ErrConflict("El préstamo ya no se puede modificar")
	}

	if in.TeacherID != nil {
		ok, err := s.store.TeacherExists(ctx, *in.TeacherID)
		if err != nil {
			return LendingResponse{}, err
		}
		if !ok {
			return LendingResponse{}, ErrNotFound("Ese profesor no existe")
		}
	}

	updated, err := s.store.ExecUpdate(ctx, id, in.TeacherID, in.Comments, items)
	if err != nil {
		return LendingResponse{}, err
	}

	s.logger.Info("lending updated", zap.Int64("lending_id", id), zap.Int("products", len(items)))

	resp := toResponse(updated)
	resp.Products = toLineResponses(in.Products)
	return resp, nil
}

// Finalize closes a lending as returned. Only an open lending can be
// finalized; non-fungible products go back to stock, consumables do not.
func (s *Service) Finalize(ctx context.Context, id int64, comments *string) (LendingResponse, error) {
	updated, err := s.store.ExecClose(ctx, id, StateFinalized, comments, s.clock.Now())
	if err != nil {
		return LendingResponse{}, err
	}
	s.logger.Info("lending finalized", zap.Int64("lending_id", id))
	return toResponse(updated), nil
}

// Delete soft-deletes: the lending ends without a normal return, keeping
// the row for history. Stock restores follow the finalize rule.
func (s *Service) Delete(ctx context.Context, id int64) (LendingResponse, error) {
	updated, err := s.store.ExecClose(ctx, id, StateInactive, nil, s.clock.Now())
	if err != nil {
		return LendingResponse{}, err
	}
	s.logger.Info("lending soft-deleted", zap.Int64("lending_id", id))
	return toResponse(updated), nil
}

// DeletePermanently rejects a Pending lending: stock comes back and the
// row disappears.
func (s *Service) DeletePermanently(ctx context.Context, id int64) error {
	if err := s.store.ExecDeletePermanently(ctx, id); err != nil {
		return err
	}
	s.logger.Info("lending rejected", zap.Int64("lending_id", id))
	return nil
}

// ApprovePending moves a Pending lending to Active with no other side
// effect.
func (s *Service) ApprovePending(ctx context.Context, id int64) (LendingResponse, error) {
	n, err := s.store.ApprovePending(ctx, id)
	if err != nil {
		return LendingResponse{}, err
	}
	if n == 0 {
		current, err := s.store.GetLending(ctx, id)
		if err != nil {
			return LendingResponse{}, err
		}
		if current == nil {
			return LendingResponse{}, ErrNotFound("Préstamo no encontrado")
		}
		return LendingResponse{}, ErrConflict("El préstamo no está pendiente")
	}

	updated, err := s.store.GetLending(ctx, id)
	if err != nil {
		return LendingResponse{}, err
	}
	s.logger.Info("lending approved", zap.Int64("lending_id", id))
	return toResponse(updated), nil
}

func (s *Service) ListActive(ctx context.Context) ([]LendingResponse, error) {
	return s.listSummaries(s.store.ListActive)(ctx)
}

func (s *Service) ListPending(ctx context.Context) ([]LendingResponse, error) {
	return s.listSummaries(s.store.ListPending)(ctx)
}

func (s *Service) ListFinalized(ctx context.Context) ([]LendingResponse, error) {
	items, err := s.store.ListFinalized(ctx, finalizedListMax)
	if err != nil {
		return nil, err
	}
	return summariesToResponses(items), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (LendingResponse, error) {
	d, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return LendingResponse{}, err
	}
	if d == nil {
		return LendingResponse{}, ErrNotFound("Préstamo no encontrado")
	}
	return toDetailResponse(d), nil
}

// ---- helpers ----

func (s *Service) listSummaries(fn func(ctx context.Context) ([]LendingSummary, error)) func(ctx context.Context) ([]LendingResponse, error) {
	return func(ctx context.Context) ([]LendingResponse, error) {
		items, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return summariesToResponses(items), nil
	}
}

func summariesToResponses(items []LendingSummary) []LendingResponse {
	out := make([]LendingResponse, 0, len(items))
	for i := range items {
		out = append(out, toSummaryResponse(&items[i]))
	}
	return out
}

func toLineItems(reqs []LineItemRequest) []LineItem {
	out := make([]LineItem, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, LineItem{ProductID: r.ProductID, Amount: r.Amount})
	}
	return out
}

func toLineResponses(reqs []LineItemRequest) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, LineItemResponse{ProductID: r.ProductID, Amount: r.Amount})
	}
	return out
}
