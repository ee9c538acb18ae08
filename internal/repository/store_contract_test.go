package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-tracking-service/internal/model"
)

// runStoreContract verifica el mismo comportamiento en cualquier OrderStore.
func runStoreContract(t *testing.T, newStore func(t *testing.T) OrderStore) {
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, s OrderStore, orders ...*model.Order) {
		t.Helper()
		for _, o := range orders {
			require.NoError(t, s.Insert(context.Background(), o))
		}
	}

	t.Run("insert and find", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, &model.Order{
			ID:            "o1",
			UserID:        "u1",
			Status:        model.StatusConfirmed,
			Address:       "Cali",
			Total:         decimal.RequireFromString("159900.50"),
			Items:         []model.OrderItem{{Name: "Camiseta", Quantity: 2, Price: decimal.RequireFromString("79950.25"), Size: "M"}},
			PaymentMethod: "paypal",
			CreatedAt:     base,
		})

		o, err := s.FindByID(context.Background(), "o1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentUnpaid, o.PaymentStatus)
		assert.True(t, o.Total.Equal(decimal.RequireFromString("159900.5")), o.Total.String())
		require.Len(t, o.Items, 1)
		assert.True(t, o.Items[0].Price.Equal(decimal.RequireFromString("79950.25")))
		assert.True(t, base.Equal(o.CreatedAt))

		_, err = s.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)

		err = s.Insert(context.Background(), &model.Order{ID: "o1", Status: model.StatusConfirmed})
		assert.ErrorIs(t, err, model.ErrAlreadyExists)
	})

	t.Run("tracking assignment is written once", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			&model.Order{ID: "o1", Status: model.StatusConfirmed, CreatedAt: base},
			&model.Order{ID: "o2", Status: model.StatusConfirmed, CreatedAt: base},
		)
		ctx := context.Background()

		code, err := s.AssignTrackingNumber(ctx, "o1", "SP00O1AAAA")
		require.NoError(t, err)
		assert.Equal(t, "SP00O1AAAA", code)

		// ya tiene guía: se conserva la existente
		code, err = s.AssignTrackingNumber(ctx, "o1", "SP00O1BBBB")
		require.NoError(t, err)
		assert.Equal(t, "SP00O1AAAA", code)

		// el código pertenece a otra orden
		_, err = s.AssignTrackingNumber(ctx, "o2", "SP00O1AAAA")
		assert.ErrorIs(t, err, model.ErrTrackingTaken)

		_, err = s.AssignTrackingNumber(ctx, "missing", "SP00O1CCCC")
		assert.ErrorIs(t, err, model.ErrNotFound)

		exists, err := s.TrackingNumberExists(ctx, "SP00O1AAAA")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = s.TrackingNumberExists(ctx, "SP00O1BBBB")
		require.NoError(t, err)
		assert.False(t, exists)

		o, err := s.FindByTrackingNumber(ctx, "SP00O1AAAA")
		require.NoError(t, err)
		assert.Equal(t, "o1", o.ID)

		_, err = s.FindByTrackingNumber(ctx, "SP00O1BBBB")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("concurrent assignment keeps codes unique", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 10; i++ {
			seed(t, s, &model.Order{ID: fmt.Sprintf("o%d", i), Status: model.StatusConfirmed, CreatedAt: base})
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				code, err := s.AssignTrackingNumber(context.Background(), id, "SPSAMEAAAA")
				if err == nil && code == "SPSAMEAAAA" {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}(fmt.Sprintf("o%d", i))
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("tracking numbers with prefix", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			&model.Order{ID: "a", Status: model.StatusConfirmed, TrackingNumber: "SPC123AAAA", CreatedAt: base},
			&model.Order{ID: "b", Status: model.StatusConfirmed, TrackingNumber: "SPC123AAAB", CreatedAt: base},
			&model.Order{ID: "c", Status: model.StatusConfirmed, TrackingNumber: "SPD123AAAA", CreatedAt: base},
			&model.Order{ID: "d", Status: model.StatusConfirmed, CreatedAt: base},
		)

		codes, err := s.TrackingNumbersWithPrefix(context.Background(), "SPC123")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"SPC123AAAA", "SPC123AAAB"}, codes)
	})

	t.Run("apply payment checks expected status", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, &model.Order{ID: "o1", Status: model.StatusConfirmed, CreatedAt: base})
		ctx := context.Background()
		upd := model.PaymentUpdate{Status: model.StatusProcessing, PaymentStatus: model.PaymentPaid, PaypalTransactionID: "TXN-1"}

		err := s.ApplyPayment(ctx, "o1", model.StatusPreparing, upd)
		assert.ErrorIs(t, err, model.ErrStatusChanged)

		require.NoError(t, s.ApplyPayment(ctx, "o1", model.StatusConfirmed, upd))
		o, err := s.FindByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusProcessing, o.Status)
		assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
		assert.Equal(t, "TXN-1", o.PaypalTransactionID)

		err = s.ApplyPayment(ctx, "missing", model.StatusConfirmed, upd)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("stale selection skips terminal and recent orders", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			&model.Order{ID: "old-2", Status: model.StatusInTransit, CreatedAt: base.Add(-90 * time.Hour)},
			&model.Order{ID: "old-1", Status: model.StatusConfirmed, CreatedAt: base.Add(-100 * time.Hour)},
			&model.Order{ID: "recent", Status: model.StatusConfirmed, CreatedAt: base.Add(-time.Hour)},
			&model.Order{ID: "done", Status: model.StatusDelivered, CreatedAt: base.Add(-200 * time.Hour)},
			&model.Order{ID: "gone", Status: model.StatusCancelled, CreatedAt: base.Add(-200 * time.Hour)},
		)

		stale, err := s.FindStale(context.Background(), model.StaleFilter{CreatedBefore: base.Add(-72 * time.Hour)})
		require.NoError(t, err)
		require.Len(t, stale, 2)
		assert.Equal(t, "old-1", stale[0].ID)
		assert.Equal(t, "old-2", stale[1].ID)
	})

	t.Run("mark delivered in batch", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			&model.Order{ID: "a", Status: model.StatusInTransit, CreatedAt: base},
			&model.Order{ID: "b", Status: model.StatusOutForDelivery, CreatedAt: base},
			&model.Order{ID: "c", Status: model.StatusCancelled, CreatedAt: base},
		)
		ctx := context.Background()

		updated, err := s.MarkDelivered(ctx, []string{"a", "b", "c", "missing"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, updated)

		for id, want := range map[string]model.Status{"a": model.StatusDelivered, "b": model.StatusDelivered, "c": model.StatusCancelled} {
			o, err := s.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, o.Status, id)
		}

		// ya entregadas: una segunda llamada no las devuelve
		updated, err = s.MarkDelivered(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Empty(t, updated)

		updated, err = s.MarkDelivered(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, updated)
	})

	t.Run("search by id fragment", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			&model.Order{ID: "665FAB01", UserID: "u1", Status: model.StatusConfirmed, CreatedAt: base},
			&model.Order{ID: "665fab02", UserID: "u2", Status: model.StatusConfirmed, CreatedAt: base.Add(time.Hour)},
			&model.Order{ID: "777c0003", UserID: "u1", Status: model.StatusConfirmed, CreatedAt: base},
			&model.Order{ID: "a.b(c)", UserID: "u1", Status: model.StatusConfirmed, CreatedAt: base},
		)
		ctx := context.Background()

		all, err := s.FindByIDFragment(ctx, "fab", "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "665fab02", all[0].ID, "newest first")

		mine, err := s.FindByIDFragment(ctx, "fab", "u1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "665FAB01", mine[0].ID)

		// los metacaracteres se buscan literalmente
		literal, err := s.FindByIDFragment(ctx, ".b(", "")
		require.NoError(t, err)
		require.Len(t, literal, 1)
		assert.Equal(t, "a.b(c)", literal[0].ID)
	})
}
