package uuid

import "testing"

func TestNewIsVersion7(t *testing.T) {
	id := New()
	if !IsValid(id) {
		t.Fatalf("expected valid uuid, got %q", id)
	}
	if id[14] != '7' {
		t.Errorf("expected version nibble 7, got %q in %s", id[14], id)
	}
}

func TestNewIsTimeOrdered(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected %s to sort after %s", next, prev)
		}
		prev = next
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("0192B8F4-6C2E-7A31-9A1B-3F2D4C5E6A7B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0192b8f4-6c2e-7a31-9a1b-3f2d4c5e6a7b" {
		t.Errorf("expected lowercase form, got %s", got)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected error for invalid uuid")
	}
}
