package cypher

import "testing"

func TestArithReturnsIntWhenBothOperandsIntLike(t *testing.T) {
	v, err := arith(int64(2), int64(10), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := v.(int64)
	if !ok || n != 20 {
		t.Fatalf("expected int64(20), got %#v", v)
	}
}

func TestArithDivisionAlwaysFloat(t *testing.T) {
	v, err := arith(int64(5), int64(2), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := v.(float64)
	if !ok || f != 2.5 {
		t.Fatalf("expected float64(2.5), got %#v", v)
	}
}

func TestArithDivisionByZero(t *testing.T) {
	if _, err := arith(int64(1), int64(0), "/"); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestCompareValuesNumericAndString(t *testing.T) {
	lt, err := compareValues(int64(1), int64(2), "<")
	if err != nil || !lt {
		t.Fatalf("expected 1 < 2, got %v, err %v", lt, err)
	}
	gt, err := compareValues("b", "a", ">")
	if err != nil || !gt {
		t.Fatalf("expected \"b\" > \"a\", got %v, err %v", gt, err)
	}
}

func TestValuesEqualAcrossNumericTypes(t *testing.T) {
	if !valuesEqual(int64(3), 3.0) {
		t.Fatal("expected int64(3) == float64(3.0)")
	}
	if valuesEqual(nil, int64(0)) {
		t.Fatal("nil must not equal zero")
	}
	if !valuesEqual(nil, nil) {
		t.Fatal("nil must equal nil")
	}
}

func TestEvalRangeInclusiveBounds(t *testing.T) {
	v, err := evalRange([]any{int64(1), int64(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := v.([]any)
	if !ok || len(got) != 5 {
		t.Fatalf("expected 5 elements, got %#v", v)
	}
	if got[0] != int64(1) || got[4] != int64(5) {
		t.Fatalf("unexpected bounds: %#v", got)
	}
}

func TestEvalRangeRejectsZeroStep(t *testing.T) {
	if _, err := evalRange([]any{int64(1), int64(5), int64(0)}); err == nil {
		t.Fatal("expected error for zero step")
	}
}

func TestReduceMinMax(t *testing.T) {
	values := []any{int64(3), int64(1), int64(2)}
	min, err := reduceMinMax(values, true)
	if err != nil || min != int64(1) {
		t.Fatalf("expected min 1, got %#v, err %v", min, err)
	}
	max, err := reduceMinMax(values, false)
	if err != nil || max != int64(3) {
		t.Fatalf("expected max 3, got %#v, err %v", max, err)
	}
}

func TestReduceMinMaxEmpty(t *testing.T) {
	v, err := reduceMinMax(nil, true)
	if err != nil || v != nil {
		t.Fatalf("expected (nil, nil), got (%#v, %v)", v, err)
	}
}
