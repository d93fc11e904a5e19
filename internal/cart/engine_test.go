package cart

import (
	"math/rand"
	"testing"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func drinksCatalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Beer", Price: dec("2.5"), InDrinks: true},
		{ID: 2, Name: "Spritz", Price: dec("3.0"), InDrinks: true},
		{ID: 3, Name: "Fries", Price: dec("4.0"), InFood: true},
	}
}

func TestEngine_DrinksScenario(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)

	e.Increment(1)
	e.Increment(1)
	e.Increment(2)

	assert.True(t, e.Total().Equal(dec("8.0")))
	assert.True(t, e.ProjectedBalance(dec("5.0")).Equal(dec("-3.0")))
	assert.True(t, e.Insufficient(dec("5.0")))
	assert.False(t, e.Insufficient(dec("8.0")))
}

func TestEngine_FiltersCategory(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)

	assert.False(t, e.Increment(3), "food item is not offered at the drinks counter")
	assert.Zero(t, e.Quantity(3))
	require.Len(t, e.Rows(), 2)
	assert.Equal(t, int64(1), e.Rows()[0].Product.ID)
}

func TestEngine_DecrementAtZeroIsNoop(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)

	assert.False(t, e.Decrement(1))
	assert.Zero(t, e.Quantity(1))

	e.Increment(1)
	assert.True(t, e.Decrement(1))
	assert.False(t, e.Decrement(1))
	assert.Zero(t, e.Quantity(1))
	assert.True(t, e.Total().IsZero())
	assert.True(t, e.Empty())
}

func TestEngine_TotalIsOrderIndependent(t *testing.T) {
	type op struct {
		id  int64
		inc bool
	}
	ops := []op{
		{1, true}, {1, true}, {2, true}, {1, false}, {2, true}, {2, false},
		{1, true}, {2, true}, {2, true}, {1, false}, {2, false}, {1, true},
	}

	run := func(seq []op) (decimal.Decimal, []domain.Line) {
		e := NewEngine()
		e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)
		for _, o := range seq {
			if o.inc {
				e.Increment(o.id)
			} else {
				e.Decrement(o.id)
			}
		}
		return e.Total(), e.Snapshot()
	}

	// Reordering increments before decrements keeps every quantity non-negative along the
	// way, so all these orders must agree.
	incs, decs := []op{}, []op{}
	for _, o := range ops {
		if o.inc {
			incs = append(incs, o)
		} else {
			decs = append(decs, o)
		}
	}
	wantTotal, wantLines := run(append(append([]op{}, incs...), decs...))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffledIncs := append([]op{}, incs...)
		rng.Shuffle(len(shuffledIncs), func(a, b int) { shuffledIncs[a], shuffledIncs[b] = shuffledIncs[b], shuffledIncs[a] })
		shuffledDecs := append([]op{}, decs...)
		rng.Shuffle(len(shuffledDecs), func(a, b int) { shuffledDecs[a], shuffledDecs[b] = shuffledDecs[b], shuffledDecs[a] })

		total, lines := run(append(shuffledIncs, shuffledDecs...))
		assert.True(t, total.Equal(wantTotal), "total %s != %s", total, wantTotal)
		assert.Equal(t, wantLines, lines)
	}

	sum := decimal.Zero
	for _, l := range wantLines {
		sum = sum.Add(l.Subtotal())
	}
	assert.True(t, sum.Equal(wantTotal))
}

func TestEngine_SnapshotKeepsShownPrices(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)
	e.Increment(2)
	e.Increment(1)

	lines := e.Snapshot()

	require.Len(t, lines, 2)
	assert.Equal(t, domain.Line{ProductID: 1, Name: "Beer", Quantity: 1, UnitPrice: dec("2.5")}, lines[0])
	assert.Equal(t, domain.Line{ProductID: 2, Name: "Spritz", Quantity: 1, UnitPrice: dec("3.0")}, lines[1])
}

func TestEngine_SetCatalogDropsMissingProducts(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)
	e.Increment(1)
	e.Increment(2)

	e.SetCatalog([]domain.Product{{ID: 2, Name: "Spritz", Price: dec("3.0"), InDrinks: true}}, domain.CategoryDrinks)

	assert.Zero(t, e.Quantity(1))
	assert.Equal(t, 1, e.Quantity(2))
	assert.True(t, e.Total().Equal(dec("3.0")))
}

func TestEngine_CategoryChangeClearsSelection(t *testing.T) {
	e := NewEngine()
	catalog := append(drinksCatalog(), domain.Product{ID: 4, Name: "Riesling", Price: dec("5"), InDrinks: true, InWine: true})
	e.SetCatalog(catalog, domain.CategoryDrinks)
	e.Increment(4)

	e.SetCatalog(catalog, domain.CategoryWine)

	assert.Zero(t, e.Quantity(4))
	assert.Equal(t, domain.CategoryWine, e.Category())
}

func TestEngine_ClearAndDropCatalog(t *testing.T) {
	e := NewEngine()
	e.SetCatalog(drinksCatalog(), domain.CategoryDrinks)
	e.Increment(1)

	e.Clear()
	assert.True(t, e.Empty())
	assert.True(t, e.HasCatalog())

	e.Increment(1)
	e.DropCatalog()
	assert.False(t, e.HasCatalog())
	assert.True(t, e.Empty())
	assert.False(t, e.Increment(1))
}
