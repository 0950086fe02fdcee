package lending

import "fmt"

// lineChange pairs the previously reserved amount and the newly requested
// amount for one product of a lending update.
type lineChange struct {
	ProductID int64
	Prev      int // reserved before the update, 0 when newly added
	Next      int // requested by the update, 0 when removed
	Fungible  bool
}

// planReconcile pairs the stored line items against the requested set.
// Order follows the requested set, with removed products appended.
func planReconcile(old []LineDetail, next []LineItem) []lineChange {
	prev := make(map[int64]LineDetail, len(old))
	for _, o := range old {
		prev[o.ProductID] = o
	}

	changes := make([]lineChange, 0, len(next)+len(old))
	seen := make(map[int64]bool, len(next))
	for _, n := range next {
		c := lineChange{ProductID: n.ProductID, Next: n.Amount}
		if o, ok := prev[n.ProductID]; ok {
			c.Prev = o.Amount
			c.Fungible = o.Fungible
		}
		changes = append(changes, c)
		seen[n.ProductID] = true
	}
	for _, o := range old {
		if !seen[o.ProductID] {
			changes = append(changes, lineChange{
				ProductID: o.ProductID,
				Prev:      o.Amount,
				Fungible:  o.Fungible,
			})
		}
	}
	return changes
}

// stockDelta is the adjustment to apply to the product's stock. Positive
// returns units to the shelf. A fully removed fungible line restores
// nothing, matching how finalize treats consumables.
func (c lineChange) stockDelta() int {
	if c.Next == 0 {
		if c.Fungible {
			return 0
		}
		return c.Prev
	}
	return c.Prev - c.Next
}

// checkAvailability validates a requested amount against current stock plus
// the caller's own standing reservation, so raising or lowering an existing
// line never double-counts its own hold.
func checkAvailability(productID int64, requested, stock, reserved int) error {
	if requested <= 0 {
		return ErrInvalid(fmt.Sprintf("La cantidad del producto %d debe ser mayor a 0", productID))
	}
	if requested > stock+reserved {
		return ErrInvalid(fmt.Sprintf("La cantidad del producto %d solicitada excede el stock disponible", productID))
	}
	return nil
}

// restockOnClose returns the per-product stock restores for finalize,
// soft delete and rejection: non-fungible lines come back, consumables
// do not.
func restockOnClose(lines []LineDetail) []LineItem {
	var out []LineItem
	for _, l := range lines {
		if l.Fungible {
			continue
		}
		out = append(out, LineItem{ProductID: l.ProductID, Amount: l.Amount})
	}
	return out
}

// validateLineItems rejects empty, non-positive and duplicated lines.
func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrInvalid("El préstamo debe incluir al menos un producto")
	}
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return ErrInvalid("productId no válido")
		}
		if it.Amount <= 0 {
			return ErrInvalid(fmt.Sprintf("La cantidad del producto %d debe ser mayor a 0", it.ProductID))
		}
		if seen[it.ProductID] {
			return ErrInvalid(fmt.Sprintf("El producto %d está repetido en el préstamo", it.ProductID))
		}
		seen[it.ProductID] = true
	}
	return nil
}
