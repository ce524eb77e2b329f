package ids

import "testing"

func TestNewProducesDistinctValidIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := New()
		if !Valid(id) {
			t.Fatalf("generated id %q is not valid", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestValidRejectsForeignShapes(t *testing.T) {
	for _, id := range []string{"", "42", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		if Valid(id) {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}
