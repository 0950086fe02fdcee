package alerts

type CreateAlertRequest struct {
	Date string `json:"date" binding:"required"` // YYYY-MM-DD or RFC3339
	Name string `json:"name" binding:"required"`
}

type AlertResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       bool   `json:"state"`
}

func toResponse(a *Alert) AlertResponse {
	return AlertResponse{
		ID:          a.AlertID,
		Date:        a.AlertOn,
		Name:        a.Name,
		Description: a.Description,
		State:       a.Seen,
	}
}
