package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/domain/order"
)

func TestStore_PutWithRemove(t *testing.T) {
	s := NewStore()
	agg := order.New(order.TypeDineIn, catalog.PaymentCash, nil)
	s.Put(agg)

	err := s.With(agg.ID(), func(a *order.Aggregate) error {
		assert.Equal(t, agg.ID(), a.ID())
		return nil
	})
	require.NoError(t, err)

	s.Remove(agg.ID())
	err = s.With(agg.ID(), func(*order.Aggregate) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UnknownOrder(t *testing.T) {
	s := NewStore()
	err := s.With("nope", func(*order.Aggregate) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SerializesAccessPerOrder(t *testing.T) {
	s := NewStore()
	agg := order.New(order.TypeDineIn, catalog.PaymentCash, nil)
	s.Put(agg)

	// Concurrent With calls must not interleave; the counter increments
	// would race without the per-order lock.
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.With(agg.ID(), func(*order.Aggregate) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, s.Len())
}
