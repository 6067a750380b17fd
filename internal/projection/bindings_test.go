package projection

import "testing"

func TestBindingsPreservesInsertionOrder(t *testing.T) {
	b := NewBindings()
	b.Set("zebra", 1)
	b.Set("apple", 2)
	b.Set("mango", 3)

	got := b.Keys()
	want := []string{"zebra", "apple", "mango"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBindingsSetOverwriteKeepsPosition(t *testing.T) {
	b := NewBindings()
	b.Set("a", 1)
	b.Set("b", 2)
	b.Set("a", 99)

	if got := b.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Keys() = %v, want [a b]", got)
	}
	v, _ := b.Get("a")
	if v != 99 {
		t.Errorf("Get(a) = %v, want 99", v)
	}
}

func TestBindingsDeletePreservesRemainingOrder(t *testing.T) {
	b := NewBindings()
	b.Set("a", 1)
	b.Set("b", 2)
	b.Set("c", 3)
	b.Delete("b")

	got := b.Keys()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Keys() after delete = %v, want [a c]", got)
	}
	if _, ok := b.Get("b"); ok {
		t.Error("Get(b) ok = true after delete")
	}
}

func TestBindingsRoundTripJSON(t *testing.T) {
	b := NewBindings()
	b.Set("asset", "XCP")
	b.Set("quantity", int64(100000000))
	b.Set("divisible", true)
	b.Set("description", "")

	encoded, err := bindingsToJSON(b)
	if err != nil {
		t.Fatalf("bindingsToJSON: %v", err)
	}
	if !encoded.Valid {
		t.Fatal("bindingsToJSON returned NULL for a non-nil Bindings")
	}

	decoded, err := ParseBindings(encoded.String)
	if err != nil {
		t.Fatalf("ParseBindings: %v", err)
	}

	if got := decoded.Keys(); len(got) != 4 {
		t.Fatalf("decoded Keys() = %v, want 4 keys", got)
	}
	if decoded.StringValue("asset") != "XCP" {
		t.Errorf("StringValue(asset) = %q, want XCP", decoded.StringValue("asset"))
	}
	if decoded.Int64Value("quantity") != 100000000 {
		t.Errorf("Int64Value(quantity) = %d, want 100000000", decoded.Int64Value("quantity"))
	}
	if !decoded.BoolValue("divisible") {
		t.Error("BoolValue(divisible) = false, want true")
	}
}

func TestBindingsToJSONNilIsSQLNull(t *testing.T) {
	encoded, err := bindingsToJSON(nil)
	if err != nil {
		t.Fatalf("bindingsToJSON(nil): %v", err)
	}
	if encoded.Valid {
		t.Error("bindingsToJSON(nil) should be SQL NULL, not a valid string")
	}
}

func TestBindingsClone(t *testing.T) {
	b := NewBindings()
	b.Set("a", 1)
	c := b.Clone()
	c.Set("a", 2)
	c.Set("b", 3)

	v, _ := b.Get("a")
	if v != 1 {
		t.Errorf("original Bindings mutated by clone: Get(a) = %v, want 1", v)
	}
	if b.Len() != 1 {
		t.Errorf("original Bindings gained keys from clone: Len() = %d, want 1", b.Len())
	}
}

func TestStringValueMissingKey(t *testing.T) {
	b := NewBindings()
	if got := b.StringValue("absent"); got != "" {
		t.Errorf("StringValue(absent) = %q, want empty", got)
	}
	if got := b.Int64Value("absent"); got != 0 {
		t.Errorf("Int64Value(absent) = %d, want 0", got)
	}
	if got := b.BoolValue("absent"); got {
		t.Error("BoolValue(absent) = true, want false")
	}
}
