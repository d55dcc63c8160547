package cache

import "testing"

func TestProbeMissThenHit(t *testing.T) {
	c := NewFromMiB(1)
	if _, ok := c.Probe(12345); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Insert(12345, 0.75)
	v, ok := c.Probe(12345)
	if !ok || v != 0.75 {
		t.Fatalf("expected hit with value 0.75, got %v, %v", v, ok)
	}
}

func TestClear(t *testing.T) {
	c := NewFromMiB(1)
	c.Insert(1, 0.5)
	c.Clear()
	if _, ok := c.Probe(1); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestSizeIsPowerOfTwo(t *testing.T) {
	c := NewFromMiB(4)
	n := c.Size()
	if n&(n-1) != 0 {
		t.Fatalf("expected power-of-two size, got %d", n)
	}
}
