package order

import "testing"

func TestPrecisionRounding(t *testing.T) {
	p := Precision{TickSize: 1, SizeDecimals: 3}
	if got := p.RoundPrice(49949.6); got != 49950 {
		t.Fatalf("round price: got %v", got)
	}
	if got := p.RoundQty(0.0050051); got != 0.005 {
		t.Fatalf("round qty: got %v", got)
	}

	fine := Precision{TickSize: 0.01, SizeDecimals: 0}
	if got := fine.RoundPrice(100.016); got != 100.02 {
		t.Fatalf("round price with fractional tick: got %v", got)
	}
	if got := fine.RoundQty(12.6); got != 13 {
		t.Fatalf("integer qty: got %v", got)
	}
}

func TestPrecisionValidate(t *testing.T) {
	p := Precision{TickSize: 0.01, SizeDecimals: 3}
	if err := p.Validate(100.01, 0.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Validate(100.015, 0.002); err == nil {
		t.Fatalf("expected tick size error")
	}
	if err := p.Validate(100.01, 0.0005); err == nil {
		t.Fatalf("expected size decimals error")
	}
	if err := p.Validate(100.01, 0); err == nil {
		t.Fatalf("expected non-positive qty error")
	}
	if err := p.Validate(0, 1); err == nil {
		t.Fatalf("expected non-positive price error")
	}
}
