package users

// ===== Requests =====

type CreateUserRequest struct {
	Rut         string  `json:"rut" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Mail        *string `json:"mail,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Type        string  `json:"type" binding:"required"`
	Degree      *string `json:"degree,omitempty"`
	Role        *string `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Name        *string `json:"name,omitempty"`
	Mail        *string `json:"mail,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Degree      *string `json:"degree,omitempty"`
	Role        *string `json:"role,omitempty"`
}

// ===== Responses =====

type UserResponse struct {
	ID          int64   `json:"id"`
	Rut         string  `json:"rut"`
	Name        string  `json:"name"`
	Mail        *string `json:"mail,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Type        string  `json:"type"`
	State       bool    `json:"state"`
	Degree      *string `json:"degree,omitempty"`
	Role        *string `json:"role,omitempty"`
}

type DegreeResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func toResponse(b *BorrowerDetail) UserResponse {
	return UserResponse{
		ID:          b.BorrowerID,
		Rut:         b.Rut,
		Name:        b.Name,
		Mail:        b.Mail,
		PhoneNumber: b.Phone,
		Type:        b.Type,
		State:       b.Active,
		Degree:      b.DegreeCode,
		Role:        b.Role,
	}
}

func toResponses(items []BorrowerDetail) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out
}
