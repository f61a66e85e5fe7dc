package product

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mmeshcher/commerce-system/internal/ledger"
	"github.com/mmeshcher/commerce-system/internal/model"
)

type stubStore struct {
	led      *ledger.Memory
	products map[int64]model.Product
}

func (s *stubStore) GetProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	var res []model.Product
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		if v, err := s.led.Value(id); err == nil {
			p.StockQuantity = v
		}
		res = append(res, p)
	}
	return res, nil
}

func newLocalWithStock(productID, stock int64) (*Local, *ledger.Memory) {
	led := ledger.NewMemory()
	led.Put(productID, stock, true)

	store := &stubStore{
		led: led,
		products: map[int64]model.Product{
			productID: {ID: productID, Name: "product", Price: 1000, StockQuantity: stock, Status: model.ProductStatusActive},
		},
	}
	return NewLocal(store, led, 3), led
}

func TestLocalCheckStock(t *testing.T) {
	svc, _ := newLocalWithStock(1, 5)

	ok, err := svc.CheckStock(context.Background(), 1, 5)
	if err != nil || !ok {
		t.Fatalf("CheckStock(5) = %v, %v; want true", ok, err)
	}

	ok, err = svc.CheckStock(context.Background(), 1, 6)
	if err != nil || ok {
		t.Fatalf("CheckStock(6) = %v, %v; want false", ok, err)
	}

	if _, err := svc.CheckStock(context.Background(), 99, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalDeductStock_Insufficient(t *testing.T) {
	svc, led := newLocalWithStock(1, 3)

	_, err := svc.DeductStock(context.Background(), 1, 5, "tx-1")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	v, _ := led.Value(1)
	if v != 3 {
		t.Fatalf("stock = %d, want 3 unchanged", v)
	}
}

func TestLocalDeductRestore_RoundTrip(t *testing.T) {
	svc, _ := newLocalWithStock(1, 10)

	left, err := svc.DeductStock(context.Background(), 1, 4, "tx-1")
	if err != nil {
		t.Fatalf("DeductStock error: %v", err)
	}
	if left != 6 {
		t.Fatalf("stock after deduct = %d, want 6", left)
	}

	left, err = svc.RestoreStock(context.Background(), 1, 4, "tx-1")
	if err != nil {
		t.Fatalf("RestoreStock error: %v", err)
	}
	if left != 10 {
		t.Fatalf("stock after restore = %d, want 10", left)
	}
}

func TestLocalDeductStock_ConcurrentSingleUnit(t *testing.T) {
	svc, led := newLocalWithStock(1, 1)

	var succeeded atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.DeductStock(context.Background(), 1, 1, "tx")
			if err == nil {
				succeeded.Add(1)
				return
			}
			if !errors.Is(err, ErrInsufficientStock) && !errors.Is(err, ledger.ErrConcurrencyConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Fatalf("exactly one deduction must win, got %d", succeeded.Load())
	}
	v, _ := led.Value(1)
	if v != 0 {
		t.Fatalf("stock = %d, want 0", v)
	}
}
