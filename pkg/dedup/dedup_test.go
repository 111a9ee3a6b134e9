package dedup

import (
	"testing"
	"time"
)

func TestShouldProcessWithinTTL(t *testing.T) {
	d := New(time.Minute, 10)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	k := Key([]byte(`{"crop":{"name":"maize"}}`))
	if !d.ShouldProcess(k) {
		t.Fatal("first delivery dropped")
	}
	if d.ShouldProcess(k) {
		t.Fatal("redelivery processed")
	}
	now = now.Add(2 * time.Minute)
	if !d.ShouldProcess(k) {
		t.Fatal("expired id still dropped")
	}
	if !d.ShouldProcess("") || !d.ShouldProcess("") {
		t.Fatal("empty id must always pass")
	}
}

func TestForgetAndEviction(t *testing.T) {
	d := New(time.Second, 2)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.ShouldProcess("a")
	d.Forget("a")
	if !d.ShouldProcess("a") {
		t.Fatal("forgotten id dropped")
	}
	d.ShouldProcess("b")
	now = now.Add(5 * time.Second)
	d.ShouldProcess("c")
	if n := d.Len(); n > 2 {
		t.Fatalf("expired entries not evicted: %d", n)
	}
	if Key([]byte("x")) == Key([]byte("y")) || len(Key(nil)) != 64 {
		t.Fatal("Key is not a hex sha256")
	}
}
