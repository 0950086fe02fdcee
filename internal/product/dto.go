package product

// Wire names follow the deployed frontend contract (camelCase, `state` for
// the active flag).

// ===== Requests =====

type CreateProductRequest struct {
	Name          string  `json:"name" binding:"required"`
	Description   *string `json:"description,omitempty"`
	Stock         *int    `json:"stock,omitempty"`
	CriticalStock *int    `json:"criticalStock,omitempty"`
	Fungible      *bool   `json:"fungible,omitempty"`
}

type UpdateProductRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Stock         *int    `json:"stock,omitempty"`
	CriticalStock *int    `json:"criticalStock,omitempty"`
	Fungible      *bool   `json:"fungible,omitempty"`
}

// ===== Responses =====

type ProductResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Stock         int    `json:"stock"`
	CriticalStock int    `json:"criticalStock"`
	Fungible      bool   `json:"fungible"`
	State         bool   `json:"state"`
}

func toResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:            p.ProductID,
		Name:          p.Name,
		Description:   p.Description,
		Stock:         p.Stock,
		CriticalStock: p.CriticalStock,
		Fungible:      p.Fungible,
		State:         p.Active,
	}
}

func toResponses(items []Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out
}
