package promise

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveOnce(t *testing.T) {
	d := New()
	if d.State() != Pending {
		t.Fatalf("expected pending state, got %v", d.State())
	}
	d.Resolve(42)
	v, err, ok := d.Result()
	if !ok || err != nil || v != 42 {
		t.Fatalf("unexpected result: v=%v err=%v ok=%v", v, err, ok)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second settle")
		}
	}()
	d.Resolve(43)
}

func TestFailTerminal(t *testing.T) {
	d := New()
	boom := errors.New("boom")
	d.Fail(boom)
	if d.State() != Failed {
		t.Fatalf("expected failed state, got %v", d.State())
	}
	_, err, ok := d.Result()
	if !ok || !errors.Is(err, boom) {
		t.Fatalf("unexpected result err=%v ok=%v", err, ok)
	}
}

func TestThenChaining(t *testing.T) {
	d := New()
	got := make([]int, 0, 2)
	d.Then(func(v any) (any, error) {
		got = append(got, v.(int))
		return v.(int) * 2, nil
	}).Then(func(v any) (any, error) {
		got = append(got, v.(int))
		return nil, nil
	})
	d.Resolve(10)
	if diff := cmp.Diff([]int{10, 20}, got); diff != "" {
		t.Fatalf("chain values mismatch (-want +got):\n%s", diff)
	}
}

func TestThenOnAlreadyResolved(t *testing.T) {
	v, err, ok := Of(5).Then(func(v any) (any, error) { return v.(int) + 1, nil }).Result()
	if !ok || err != nil || v != 6 {
		t.Fatalf("unexpected result: v=%v err=%v ok=%v", v, err, ok)
	}
}

func TestThenFlattensDeferred(t *testing.T) {
	inner := New()
	out := Of(1).Then(func(any) (any, error) { return inner, nil })
	if out.State() != Pending {
		t.Fatalf("expected outer to wait for inner")
	}
	inner.Resolve("flat")
	v, _, ok := out.Result()
	if !ok || v != "flat" {
		t.Fatalf("expected flattened value, got %v ok=%v", v, ok)
	}
}

func TestFailurePropagatesThroughChain(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	out := Reject(boom).Then(func(any) (any, error) {
		ran = true
		return nil, nil
	})
	_, err, ok := out.Result()
	if ran {
		t.Fatalf("continuation must not run after failure")
	}
	if !ok || !errors.Is(err, boom) {
		t.Fatalf("expected propagated failure, got %v ok=%v", err, ok)
	}
}

func TestCatchIntercepts(t *testing.T) {
	out := Reject(errors.New("boom")).Catch(func(err error) (any, error) {
		return "recovered", nil
	})
	v, err, ok := out.Result()
	if !ok || err != nil || v != "recovered" {
		t.Fatalf("unexpected result: v=%v err=%v ok=%v", v, err, ok)
	}
}

func TestAllResolvesInInputOrder(t *testing.T) {
	a, b, c := New(), New(), New()
	out := All(a, b, c)
	// Settle out of order.
	c.Resolve(3)
	a.Resolve(1)
	if out.State() != Pending {
		t.Fatalf("join must wait for every input")
	}
	b.Resolve(2)
	v, _, ok := out.Result()
	if !ok {
		t.Fatalf("join did not settle")
	}
	if diff := cmp.Diff([]any{1, 2, 3}, v); diff != "" {
		t.Fatalf("joined values mismatch (-want +got):\n%s", diff)
	}
}

func TestAllFailsOnFirstFailure(t *testing.T) {
	a, b := New(), New()
	out := All(a, b)
	boom := errors.New("boom")
	a.Fail(boom)
	_, err, ok := out.Result()
	if !ok || !errors.Is(err, boom) {
		t.Fatalf("expected join failure, got %v ok=%v", err, ok)
	}
	// A late settle of the remaining input must not panic the join.
	b.Resolve(2)
}

func TestAllEmpty(t *testing.T) {
	v, err, ok := All().Result()
	if !ok || err != nil {
		t.Fatalf("empty join should resolve immediately")
	}
	if len(v.([]any)) != 0 {
		t.Fatalf("expected empty slice, got %v", v)
	}
}
