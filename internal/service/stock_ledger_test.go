package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/metrics"
	"github.com/dujiao-next/backoffice/internal/repository"

	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

// casMissVariantRepo 比较并交换总是未命中，模拟持续的并发写入
type casMissVariantRepo struct {
	repository.ProductVariantRepository
	calls *int
}

func (r casMissVariantRepo) CompareAndSet(id uint, expected int, next int) (int64, error) {
	*r.calls++
	return 0, nil
}

func (r casMissVariantRepo) WithTx(tx *gorm.DB) repository.ProductVariantRepository {
	return casMissVariantRepo{ProductVariantRepository: r.ProductVariantRepository.WithTx(tx), calls: r.calls}
}

func TestStockLedgerReserveThenInsufficient(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "tee", "50.00", "")
	variant := f.createVariant(t, product.ID, "M", 5)
	ctx := context.Background()
	actor := AdminActor(1)

	result, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 3, Actor: actor})
	if err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if result.PreviousQuantity != 5 || result.NewQuantity != 2 || result.QuantityChange != -3 {
		t.Fatalf("unexpected reserve result: %+v", result)
	}

	_, err = f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 3, Actor: actor})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed insufficient stock error, got %T", err)
	}
	if stockErr.VariantID != variant.ID || stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected insufficient stock detail: %+v", stockErr)
	}
	if got := f.quantityOf(t, variant.ID); got != 2 {
		t.Fatalf("quantity should stay 2 after rejected reserve, got %d", got)
	}
	if logs := f.logsOf(t, variant.ID); len(logs) != 1 {
		t.Fatalf("rejected reserve must not write a log, got %d entries", len(logs))
	}
}

func TestStockLedgerReserveReleaseRestoresQuantity(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "hoodie", "80.00", "")
	variant := f.createVariant(t, product.ID, "L", 7)
	ctx := context.Background()
	actor := AdminActor(2)

	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 4, Actor: actor, Reference: "BO1"}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := f.ledger.Release(ctx, StockMutation{VariantID: variant.ID, Quantity: 4, Actor: actor, Reference: "BO1"}); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if got := f.quantityOf(t, variant.ID); got != 7 {
		t.Fatalf("reserve+release should restore quantity, got %d", got)
	}

	logs := f.logsOf(t, variant.ID)
	if len(logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(logs))
	}
	if logs[0].ChangeType != constants.InventoryChangeReserve || logs[1].ChangeType != constants.InventoryChangeRelease {
		t.Fatalf("unexpected change types: %s, %s", logs[0].ChangeType, logs[1].ChangeType)
	}
	for i, entry := range logs {
		if entry.NewQuantity != entry.PreviousQuantity+entry.QuantityChange {
			t.Fatalf("log %d violates delta invariant: %+v", i, entry)
		}
		if entry.Sequence != uint64(i+1) {
			t.Fatalf("log %d has sequence %d", i, entry.Sequence)
		}
		if entry.ActorID != "admin:2" {
			t.Fatalf("unexpected actor id: %s", entry.ActorID)
		}
	}
	if logs[1].PreviousQuantity != logs[0].NewQuantity {
		t.Fatalf("history is not contiguous: %+v", logs)
	}
}

func TestStockLedgerValidation(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "cap", "20.00", "")
	variant := f.createVariant(t, product.ID, "ONE", 3)
	ctx := context.Background()

	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 0, Actor: AdminActor(1)}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 1}); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected actor required, got %v", err)
	}
	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: 9999, Quantity: 1, Actor: AdminActor(1)}); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got %v", err)
	}
	if _, err := f.ledger.Release(ctx, StockMutation{VariantID: 9999, Quantity: 1, Actor: AdminActor(1)}); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found on release, got %v", err)
	}
	if _, err := f.ledger.AdjustTo(ctx, StockAdjustment{VariantID: variant.ID, NewQuantity: -1, Actor: AdminActor(1)}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity on adjust, got %v", err)
	}
	if _, err := f.ledger.CheckAvailability(ctx, variant.ID, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity on availability check, got %v", err)
	}
}

func TestStockLedgerCheckAvailability(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "sock", "5.00", "")
	variant := f.createVariant(t, product.ID, "S", 2)
	ctx := context.Background()

	ok, err := f.ledger.CheckAvailability(ctx, variant.ID, 2)
	if err != nil || !ok {
		t.Fatalf("expected available, ok=%v err=%v", ok, err)
	}
	ok, err = f.ledger.CheckAvailability(ctx, variant.ID, 3)
	if err != nil || ok {
		t.Fatalf("expected unavailable, ok=%v err=%v", ok, err)
	}
	ok, err = f.ledger.CheckAvailability(ctx, 4242, 1)
	if err != nil || ok {
		t.Fatalf("missing variant should be unavailable without error, ok=%v err=%v", ok, err)
	}
	if got := f.quantityOf(t, variant.ID); got != 2 {
		t.Fatalf("availability check must not change quantity, got %d", got)
	}
}

func TestStockLedgerInactiveVariantRejectsReserve(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "scarf", "30.00", "")
	variant := f.createVariant(t, product.ID, "RED", 10)
	ctx := context.Background()

	if err := f.ledger.SetVariantActive(ctx, variant.ID, false, AdminActor(1)); err != nil {
		t.Fatalf("deactivate variant failed: %v", err)
	}
	ok, err := f.ledger.CheckAvailability(ctx, variant.ID, 1)
	if err != nil || ok {
		t.Fatalf("inactive variant should be unavailable, ok=%v err=%v", ok, err)
	}
	_, err = f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 1, Actor: AdminActor(1)})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || !stockErr.Inactive {
		t.Fatalf("expected inactive insufficient stock error, got %v", err)
	}
}

func TestStockLedgerAdjustToLogsSignedDelta(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "mug", "12.00", "")
	variant := f.createVariant(t, product.ID, "WHITE", 10)
	ctx := context.Background()

	result, err := f.ledger.AdjustTo(ctx, StockAdjustment{VariantID: variant.ID, NewQuantity: 4, Actor: AdminActor(3), Reason: "cycle count"})
	if err != nil {
		t.Fatalf("adjust down failed: %v", err)
	}
	if result.QuantityChange != -6 || result.NewQuantity != 4 {
		t.Fatalf("unexpected adjust result: %+v", result)
	}
	result, err = f.ledger.AdjustTo(ctx, StockAdjustment{VariantID: variant.ID, NewQuantity: 9, Actor: AdminActor(3)})
	if err != nil {
		t.Fatalf("adjust up failed: %v", err)
	}
	if result.QuantityChange != 5 {
		t.Fatalf("unexpected adjust delta: %d", result.QuantityChange)
	}

	logs := f.logsOf(t, variant.ID)
	if len(logs) != 2 {
		t.Fatalf("expected 2 manual logs, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.ChangeType != constants.InventoryChangeManualUpdate {
			t.Fatalf("unexpected change type: %s", entry.ChangeType)
		}
	}
	if logs[0].Reason != "cycle count" {
		t.Fatalf("reason not recorded: %q", logs[0].Reason)
	}
	if _, err := f.ledger.AdjustTo(ctx, StockAdjustment{VariantID: 777, NewQuantity: 1, Actor: AdminActor(3)}); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got %v", err)
	}
}

func TestStockLedgerAdjustToGivesUpAfterRetries(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "lamp", "30.00", "")
	variant := f.createVariant(t, product.ID, "WARM", 5)

	calls := 0
	repo := casMissVariantRepo{ProductVariantRepository: repository.NewProductVariantRepository(f.db), calls: &calls}
	ledger := NewStockLedger(f.db, repo, f.audit, StockLedgerOptions{MaxRetries: 3, Metrics: f.metrics})

	_, err := ledger.AdjustTo(context.Background(), StockAdjustment{VariantID: variant.ID, NewQuantity: 9, Actor: AdminActor(1)})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("compare-and-set attempts want 3, got %d", calls)
	}
	if qty := f.quantityOf(t, variant.ID); qty != 5 {
		t.Fatalf("quantity should stay 5, got %d", qty)
	}
	if logs := f.logsOf(t, variant.ID); len(logs) != 0 {
		t.Fatalf("no log expected on conflict, got %d", len(logs))
	}

	mfs, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics failed: %v", err)
	}
	if got := stockMutationCount(mfs, constants.InventoryChangeManualUpdate, metrics.OutcomeRejected); got != 1 {
		t.Fatalf("rejected manual_update counter want 1, got %v", got)
	}
}

func stockMutationCount(mfs []*dto.MetricFamily, changeType, outcome string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != "backoffice_stock_mutations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["change_type"] == changeType && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestStockLedgerConcurrentReserveNeverOversells(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "flash", "99.00", "")
	const stock = 5
	const workers = 20
	variant := f.createVariant(t, product.ID, "LIMITED", stock)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 1, Actor: AdminActor(uint(i + 1))})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != stock || rejected != workers-stock {
		t.Fatalf("expected %d successes and %d rejections, got %d and %d", stock, workers-stock, successes, rejected)
	}
	if got := f.quantityOf(t, variant.ID); got != 0 {
		t.Fatalf("expected stock drained to 0, got %d", got)
	}
	logs := f.logsOf(t, variant.ID)
	if len(logs) != stock {
		t.Fatalf("expected %d log entries, got %d", stock, len(logs))
	}
	for i, entry := range logs {
		if entry.NewQuantity < 0 || entry.NewQuantity != entry.PreviousQuantity+entry.QuantityChange {
			t.Fatalf("log %d violates invariants: %+v", i, entry)
		}
	}
}

func TestStockLedgerConcurrentReserveAndReleaseKeepsNonNegative(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "mixed", "10.00", "")
	variant := f.createVariant(t, product.ID, "X", 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 2, Actor: SystemActor("load")}); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Release(ctx, StockMutation{VariantID: variant.ID, Quantity: 1, Actor: SystemActor("load")})
		}()
	}
	wg.Wait()

	want := 3 - 2*reserved + 10
	if got := f.quantityOf(t, variant.ID); got != want || got < 0 {
		t.Fatalf("unexpected final quantity: got %d want %d", got, want)
	}
	for _, entry := range f.logsOf(t, variant.ID) {
		if entry.NewQuantity < 0 {
			t.Fatalf("negative quantity recorded: %+v", entry)
		}
	}
}

func TestStockLedgerReleaseReservationIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "lamp", "45.00", "")
	variant := f.createVariant(t, product.ID, "STD", 6)
	ctx := context.Background()

	reserved, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 4, Actor: AdminActor(1), Reference: "BO42"})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	actor := SystemActor(constants.SystemActorCompensation)

	first, err := f.ledger.ReleaseReservation(ctx, reserved.Log.ID, actor, "rollback")
	if err != nil {
		t.Fatalf("first release reservation failed: %v", err)
	}
	if !first.Released || first.Result.QuantityChange != 4 {
		t.Fatalf("unexpected first release: %+v", first)
	}
	if first.Result.Log.ReversesLogID == nil || *first.Result.Log.ReversesLogID != reserved.Log.ID {
		t.Fatalf("reversal should point to reserve log")
	}
	if first.Result.Log.Reference != "BO42" {
		t.Fatalf("reversal should keep reference, got %q", first.Result.Log.Reference)
	}

	second, err := f.ledger.ReleaseReservation(ctx, reserved.Log.ID, actor, "rollback")
	if err != nil {
		t.Fatalf("second release reservation failed: %v", err)
	}
	if second.Released {
		t.Fatalf("second release must be a no-op")
	}
	if got := f.quantityOf(t, variant.ID); got != 6 {
		t.Fatalf("expected quantity restored once to 6, got %d", got)
	}

	if _, err := f.ledger.ReleaseReservation(ctx, first.Result.Log.ID, actor, "bad"); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("releasing a release entry should fail, got %v", err)
	}
	if _, err := f.ledger.ReleaseReservation(ctx, reserved.Log.ID, "", "bad"); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected actor required, got %v", err)
	}
}

func TestStockLedgerCanceledContextAbortsReserve(t *testing.T) {
	f := newServiceFixture(t)
	product := f.createProduct(t, "late", "10.00", "")
	variant := f.createVariant(t, product.ID, "Z", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.ledger.Reserve(ctx, StockMutation{VariantID: variant.ID, Quantity: 1, Actor: AdminActor(1)}); err == nil {
		t.Fatalf("reserve with canceled context should fail")
	}
	if got := f.quantityOf(t, variant.ID); got != 2 {
		t.Fatalf("canceled reserve must not change stock, got %d", got)
	}
}
