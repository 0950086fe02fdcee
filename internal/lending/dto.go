package lending

import "time"

// Wire names follow the deployed frontend contract, including the
// original's capitalized `BorrowerId`.

// ===== Requests =====

type LineItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Amount    int   `json:"amount" binding:"required"`
}

type CreateLendingRequest struct {
	BorrowerID int64             `json:"BorrowerId" binding:"required"`
	TeacherID  *int64            `json:"teacherId,omitempty"`
	Comments   *string           `json:"comments,omitempty"`
	Products   []LineItemRequest `json:"products" binding:"required"`
}

type UpdateLendingRequest struct {
	TeacherID *int64            `json:"teacherId,omitempty"`
	Comments  *string           `json:"comments,omitempty"`
	Products  []LineItemRequest `json:"products" binding:"required"`
}

type FinalizeLendingRequest struct {
	Comments *string `json:"comments,omitempty"`
}

// ===== Responses =====

type LineItemResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name,omitempty"`
	Amount    int    `json:"amount"`
	Fungible  bool   `json:"fungible"`
}

type LendingResponse struct {
	ID            int64      `json:"id"`
	ULID          string     `json:"ulid"`
	BorrowerID    int64      `json:"BorrowerId"`
	TeacherID     *int64     `json:"teacherId,omitempty"`
	State         string     `json:"state"`
	Comments      *string    `json:"comments,omitempty"`
	Date          time.Time  `json:"date"`
	FinalizeDate  *time.Time `json:"finalizeDate,omitempty"`
	EliminateDate *time.Time `json:"eliminateDate,omitempty"`

	BorrowerName string             `json:"borrowerName,omitempty"`
	BorrowerRut  string             `json:"borrowerRut,omitempty"`
	TeacherName  *string            `json:"teacherName,omitempty"`
	Products     []LineItemResponse `json:"products,omitempty"`
}

func toResponse(l *Lending) LendingResponse {
	return LendingResponse{
		ID:            l.LendingID,
		ULID:          l.LendingULID,
		BorrowerID:    l.BorrowerID,
		TeacherID:     l.TeacherID,
		State:         l.State,
		Comments:      l.Comments,
		Date:          l.CreatedAt,
		FinalizeDate:  l.FinalizedAt,
		EliminateDate: l.EliminatedAt,
	}
}

func toSummaryResponse(s *LendingSummary) LendingResponse {
	resp := toResponse(&s.Lending)
	resp.BorrowerName = s.BorrowerName
	resp.TeacherName = s.TeacherName
	return resp
}

func toDetailResponse(d *LendingDetail) LendingResponse {
	resp := toResponse(&d.Lending)
	resp.BorrowerName = d.BorrowerName
	resp.BorrowerRut = d.BorrowerRut
	resp.TeacherName = d.TeacherName
	resp.Products = make([]LineItemResponse, 0, len(d.Lines))
	for _, l := range d.Lines {
		resp.Products = append(resp.Products, LineItemResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Amount:    l.Amount,
			Fungible:  l.Fungible,
		})
	}
	return resp
}
