package cart

import (
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Row is one product as the checkout screen lists it.
type Row struct {
	Product  domain.Product
	Quantity int
}

// Engine holds the selection of one counter screen. It is not safe for concurrent use;
// the terminal only touches it from the event loop.
type Engine struct {
	category domain.Category
	catalog  []domain.Product
	qty      map[int64]int
}

func NewEngine() *Engine {
	return &Engine{qty: make(map[int64]int)}
}

// SetCatalog installs the products of category c. Selected products that are no longer
// offered are dropped; switching category drops the whole selection.
func (e *Engine) SetCatalog(products []domain.Product, c domain.Category) {
	if c != e.category {
		e.qty = make(map[int64]int)
	}
	e.category = c
	e.catalog = domain.FilterCategory(products, c)

	offered := make(map[int64]struct{}, len(e.catalog))
	for _, p := range e.catalog {
		offered[p.ID] = struct{}{}
	}
	for id := range e.qty {
		if _, ok := offered[id]; !ok {
			delete(e.qty, id)
		}
	}
}

// DropCatalog forgets the catalog and the selection. The screen shows the scan placeholder
// until the next SetCatalog.
func (e *Engine) DropCatalog() {
	e.catalog = nil
	e.qty = make(map[int64]int)
}

// Reset prepares the engine for a new counter screen of category c.
func (e *Engine) Reset(c domain.Category) {
	e.category = c
	e.DropCatalog()
}

func (e *Engine) HasCatalog() bool {
	return e.catalog != nil
}

func (e *Engine) Category() domain.Category {
	return e.category
}

func (e *Engine) product(id int64) (domain.Product, bool) {
	for _, p := range e.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Increment adds one unit. Returns false if the product is not offered.
func (e *Engine) Increment(id int64) bool {
	if _, ok := e.product(id); !ok {
		return false
	}
	e.qty[id]++
	return true
}

// Decrement removes one unit. Removing from zero is a no-op and returns false.
func (e *Engine) Decrement(id int64) bool {
	if _, ok := e.product(id); !ok {
		return false
	}
	if e.qty[id] == 0 {
		return false
	}
	e.qty[id]--
	if e.qty[id] == 0 {
		delete(e.qty, id)
	}
	return true
}

func (e *Engine) Quantity(id int64) int {
	return e.qty[id]
}

func (e *Engine) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range e.catalog {
		if q := e.qty[p.ID]; q > 0 {
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(q))))
		}
	}
	return total
}

// ProjectedBalance is what would be left after paying the current selection. Negative
// means the selection cannot be paid.
func (e *Engine) ProjectedBalance(balance decimal.Decimal) decimal.Decimal {
	return balance.Sub(e.Total())
}

func (e *Engine) Insufficient(balance decimal.Decimal) bool {
	return e.ProjectedBalance(balance).IsNegative()
}

func (e *Engine) Empty() bool {
	return len(e.qty) == 0
}

// Snapshot returns the selected lines with the prices currently shown, in catalog order.
func (e *Engine) Snapshot() []domain.Line {
	lines := make([]domain.Line, 0, len(e.qty))
	for _, p := range e.catalog {
		q := e.qty[p.ID]
		if q <= 0 {
			continue
		}
		lines = append(lines, domain.Line{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  q,
			UnitPrice: p.Price,
		})
	}
	return lines
}

func (e *Engine) Rows() []Row {
	rows := make([]Row, 0, len(e.catalog))
	for _, p := range e.catalog {
		rows = append(rows, Row{Product: p, Quantity: e.qty[p.ID]})
	}
	return rows
}

// Clear resets every quantity to zero and keeps the catalog.
func (e *Engine) Clear() {
	e.qty = make(map[int64]int)
}
