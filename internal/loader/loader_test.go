package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// keyedBatch returns a batch func that records the batches it receives and
// resolves every key to fn(key).
func keyedBatch[V any](batches *[][]int64, fn func(int64) V) BatchFunc[int64, V] {
	return func(ctx context.Context, keys []int64) ([]V, []error) {
		*batches = append(*batches, append([]int64(nil), keys...))
		out := make([]V, len(keys))
		for i, k := range keys {
			out[i] = fn(k)
		}
		return out, nil
	}
}

func resultOf(t *testing.T, d interface {
	Result() (any, error, bool)
}) any {
	t.Helper()
	v, err, ok := d.Result()
	if !ok {
		t.Fatalf("deferred not settled")
	}
	if err != nil {
		t.Fatalf("deferred failed: %v", err)
	}
	return v
}

func TestLoadCoalescesDistinctKeysIntoOneBatch(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	l := New(reg, "products", keyedBatch(&batches, func(k int64) string {
		return fmt.Sprintf("product-%d", k)
	}))

	d1 := l.Load(1)
	d2 := l.Load(2)
	d3 := l.Load(1) // duplicate shares the cached deferred

	if d1 != d3 {
		t.Fatalf("equal keys must share one deferred")
	}
	if !reg.Flush(context.Background()) {
		t.Fatalf("flush reported no work")
	}

	if diff := cmp.Diff([][]int64{{1, 2}}, batches); diff != "" {
		t.Fatalf("batches mismatch (-want +got):\n%s", diff)
	}
	if got := resultOf(t, d1); got != "product-1" {
		t.Fatalf("d1 = %v", got)
	}
	if got := resultOf(t, d2); got != "product-2" {
		t.Fatalf("d2 = %v", got)
	}
}

func TestRepeatLoadAfterFlushHitsCache(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	l := New(reg, "products", keyedBatch(&batches, func(k int64) int64 { return k * 10 }))

	l.Load(7)
	reg.Flush(context.Background())

	d := l.Load(7)
	if got := resultOf(t, d); got != int64(70) {
		t.Fatalf("cached load = %v", got)
	}
	if reg.Flush(context.Background()) {
		t.Fatalf("cache hit must not enqueue work")
	}
	if len(batches) != 1 {
		t.Fatalf("batch ran %d times, want 1", len(batches))
	}
}

func TestLoadManyPreservesKeyOrder(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	l := New(reg, "products", keyedBatch(&batches, func(k int64) int64 { return k * 2 }))

	d := l.LoadMany([]int64{3, 1, 2})
	reg.Flush(context.Background())

	got := resultOf(t, d)
	if diff := cmp.Diff([]any{int64(6), int64(2), int64(4)}, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestPrimeShortCircuitsTheBatch(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	l := New(reg, "products", keyedBatch(&batches, func(k int64) string { return "fetched" }))

	l.Prime(5, "seeded")
	d := l.Load(5)
	if got := resultOf(t, d); got != "seeded" {
		t.Fatalf("primed value = %v", got)
	}

	l.Load(6)
	reg.Flush(context.Background())
	if diff := cmp.Diff([][]int64{{6}}, batches); diff != "" {
		t.Fatalf("primed key leaked into the batch (-want +got):\n%s", diff)
	}
}

func TestPrimeDoesNotReplaceCachedDeferred(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	l := New(reg, "products", keyedBatch(&batches, func(k int64) string { return "fetched" }))

	d := l.Load(1)
	l.Prime(1, "late seed")
	reg.Flush(context.Background())

	if got := resultOf(t, d); got != "fetched" {
		t.Fatalf("queued key must keep its fetch, got %v", got)
	}
}

func TestPerKeyErrorsFailOnlyTheirDeferreds(t *testing.T) {
	reg := NewRegistry()
	missing := errors.New("row not found")
	l := New(reg, "products", func(ctx context.Context, keys []int64) ([]string, []error) {
		values := make([]string, len(keys))
		errs := make([]error, len(keys))
		for i, k := range keys {
			if k == 2 {
				errs[i] = missing
				continue
			}
			values[i] = fmt.Sprintf("product-%d", k)
		}
		return values, errs
	})

	ok := l.Load(1)
	bad := l.Load(2)
	reg.Flush(context.Background())

	if got := resultOf(t, ok); got != "product-1" {
		t.Fatalf("healthy key = %v", got)
	}
	_, err, settled := bad.Result()
	if !settled || !errors.Is(err, missing) {
		t.Fatalf("failing key: err=%v settled=%v", err, settled)
	}
}

func TestBatchWideErrorFailsEveryDeferred(t *testing.T) {
	reg := NewRegistry()
	down := errors.New("database down")
	l := New(reg, "products", func(ctx context.Context, keys []int64) ([]string, []error) {
		return nil, []error{down}
	})

	d1 := l.Load(1)
	d2 := l.Load(2)
	reg.Flush(context.Background())

	for _, d := range []interface {
		Result() (any, error, bool)
	}{d1, d2} {
		_, err, settled := d.Result()
		if !settled || !errors.Is(err, down) {
			t.Fatalf("expected batch failure, got err=%v settled=%v", err, settled)
		}
	}
}

func TestShortBatchResultFailsTheBatch(t *testing.T) {
	reg := NewRegistry()
	l := New(reg, "products", func(ctx context.Context, keys []int64) ([]string, []error) {
		return []string{"only one"}, nil
	})

	l.Load(1)
	d := l.Load(2)
	reg.Flush(context.Background())

	_, err, settled := d.Result()
	if !settled || err == nil {
		t.Fatalf("expected a length-mismatch failure, got err=%v settled=%v", err, settled)
	}
}

func TestContinuationsQueueForTheNextFlush(t *testing.T) {
	reg := NewRegistry()
	var batches [][]int64
	parents := New(reg, "parents", keyedBatch(&batches, func(k int64) int64 { return k + 100 }))
	children := New(reg, "children", keyedBatch(&batches, func(k int64) string {
		return fmt.Sprintf("child-of-%d", k)
	}))

	d := parents.Load(1).Then(func(v any) (any, error) {
		return children.Load(v.(int64)), nil
	})

	reg.Flush(context.Background()) // parents
	reg.Flush(context.Background()) // children queued by the continuation

	if got := resultOf(t, d); got != "child-of-101" {
		t.Fatalf("chained load = %v", got)
	}
	if diff := cmp.Diff([][]int64{{1}, {101}}, batches); diff != "" {
		t.Fatalf("flush order mismatch (-want +got):\n%s", diff)
	}
}

func TestFlushRunsDirtyLoadersTogether(t *testing.T) {
	reg := NewRegistry()
	var productBatches, channelBatches [][]int64
	products := New(reg, "products", keyedBatch(&productBatches, func(k int64) int64 { return k }))
	channels := New(reg, "channels", keyedBatch(&channelBatches, func(k int64) int64 { return k }))

	products.Load(1)
	channels.Load(2)

	if !reg.Flush(context.Background()) {
		t.Fatalf("flush reported no work")
	}
	if len(productBatches) != 1 || len(channelBatches) != 1 {
		t.Fatalf("both loaders must flush in one tick: products=%d channels=%d",
			len(productBatches), len(channelBatches))
	}
	if reg.Flush(context.Background()) {
		t.Fatalf("second flush must be a no-op")
	}
}

func TestOrderByKeysFillsMissingWithZero(t *testing.T) {
	type row struct{ ID int64 }
	rows := []*row{{ID: 2}, {ID: 1}}
	got := OrderByKeys([]int64{1, 3, 2}, rows, func(r *row) int64 { return r.ID })
	if got[0].ID != 1 || got[1] != nil || got[2].ID != 2 {
		t.Fatalf("ordered rows mismatch: %v", got)
	}
}

func TestGroupByKeysGroupsInKeyOrder(t *testing.T) {
	type row struct {
		Parent int64
		Name   string
	}
	rows := []row{{1, "a"}, {2, "b"}, {1, "c"}}
	got := GroupByKeys([]int64{2, 1, 3}, rows, func(r row) int64 { return r.Parent })
	want := [][]row{{{2, "b"}}, {{1, "a"}, {1, "c"}}, nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}
}
