package kanban

import (
	"fmt"
	"time"
)

// LedgerTotal is Σ(unitValue × quantity) over the line items.
func LedgerTotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitValue * float64(item.Quantity)
	}
	return total
}

func snapshotLineItem(ids IDSource, catalogs Catalogs, productID int64, quantity int) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, notFound("quantity must be at least 1, got %d", quantity)
	}
	if catalogs == nil {
		return LineItem{}, notFound("product %d not found", productID)
	}
	product, ok := catalogs.LookupProduct(productID)
	if !ok {
		return LineItem{}, notFound("product %d not found", productID)
	}
	return LineItem{
		ID:        ids.NextID(),
		ProductID: product.ID,
		Name:      product.Name,
		UnitValue: product.Price,
		Quantity:  quantity,
	}, nil
}

// AddLineItem snapshots the product's current name and price onto the card.
// From then on the card value is the ledger total.
func (c *Card) AddLineItem(ids IDSource, catalogs Catalogs, productID int64, quantity int, now time.Time) (LineItem, error) {
	item, err := snapshotLineItem(ids, catalogs, productID, quantity)
	if err != nil {
		return LineItem{}, err
	}
	c.LineItems = append(c.LineItems, item)
	c.Value = LedgerTotal(c.LineItems)
	c.UpdatedAt = now
	c.appendActivity(ids, fmt.Sprintf("adicionou o produto %s", item.Name), "Package", now)
	return item, nil
}

// RemoveLineItem drops one item. When the last item goes away the value stays
// at the last computed total until a manual value is set.
func (c *Card) RemoveLineItem(ids IDSource, lineItemID int64, now time.Time) error {
	idx := -1
	for i := range c.LineItems {
		if c.LineItems[i].ID == lineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("line item %d not found on card %d", lineItemID, c.ID)
	}
	c.LineItems = append(c.LineItems[:idx:idx], c.LineItems[idx+1:]...)
	if len(c.LineItems) > 0 {
		c.Value = LedgerTotal(c.LineItems)
	}
	c.UpdatedAt = now
	c.appendActivity(ids, "removeu um produto", "Trash2", now)
	return nil
}

// SetValue sets the manual value. It is refused while line items exist since
// the value is derived from them.
func (c *Card) SetValue(ids IDSource, value float64, now time.Time) error {
	if err := c.checkManualValue(value); err != nil {
		return err
	}
	if c.Value == value {
		return nil
	}
	c.Value = value
	c.UpdatedAt = now
	c.appendActivity(ids, fmt.Sprintf("alterou o valor para %.2f", value), "DollarSign", now)
	return nil
}

func (c *Card) checkManualValue(value float64) error {
	if len(c.LineItems) > 0 {
		return validationError("card %d value is derived from its line items", c.ID)
	}
	if value < 0 {
		return validationError("value must not be negative")
	}
	return nil
}
