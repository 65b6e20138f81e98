package sequence

import "testing"

func TestLimiterFactoryReturnsSameLimiterPerOrderType(t *testing.T) {
	f := NewLimiterFactory(10, 5)
	a := f.For("HWS")
	b := f.For("HWS")
	if a != b {
		t.Fatalf("expected the same limiter instance to be reused for a repeated order type")
	}
	c := f.For("HJB")
	if a == c {
		t.Fatalf("expected HWS and HJB to get independent limiters")
	}
}
