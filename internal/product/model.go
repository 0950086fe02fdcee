package product

type Product struct {
	ProductID     int64
	Name          string
	Description   string
	Stock         int
	CriticalStock int
	Fungible      bool
	Active        bool
}
