package buffer

import "testing"

func TestAppendWithinCapacity(t *testing.T) {
	b := New(8)
	if err := b.Append([]byte("abcd")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := string(b.Bytes()); got != "abcd" {
		t.Errorf("Bytes() = %q, want %q", got, "abcd")
	}
	if err := b.Append([]byte("efgh")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := string(b.Bytes()); got != "abcdefgh" {
		t.Errorf("Bytes() = %q, want %q", got, "abcdefgh")
	}
}

func TestAppendExceedsCapacity(t *testing.T) {
	b := New(4)
	if err := b.Append([]byte("abcde")); err == nil {
		t.Fatal("Append beyond capacity should fail")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after failed append, want 0", b.Len())
	}
}

func TestTruncate(t *testing.T) {
	b := New(8)
	_ = b.Append([]byte("abcdef"))
	b.Truncate(2)
	if got := string(b.Bytes()); got != "ab" {
		t.Errorf("Bytes() = %q, want %q", got, "ab")
	}
}

func TestResizeZeroedGrowsWithZeroFill(t *testing.T) {
	b := New(8)
	_ = b.Append([]byte("ab"))
	if err := b.ResizeZeroed(6); err != nil {
		t.Fatalf("ResizeZeroed: %v", err)
	}
	want := []byte{'a', 'b', 0, 0, 0, 0}
	got := b.Bytes()
	if len(got) != len(want) {
		t.Fatalf("len(Bytes()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bytes()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResizeZeroedBeyondCapacityFails(t *testing.T) {
	b := New(4)
	if err := b.ResizeZeroed(5); err == nil {
		t.Fatal("ResizeZeroed beyond capacity should fail")
	}
}

func TestZeroRange(t *testing.T) {
	b := New(8)
	_ = b.Append([]byte("abcdef"))
	b.ZeroRange(2, 4)
	got := b.Bytes()
	want := []byte{'a', 'b', 0, 0, 'e', 'f'}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bytes()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
