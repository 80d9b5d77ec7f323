package emitter

import "testing"

func TestLookupQuirkFound(t *testing.T) {
	q, ok := lookupQuirk(0x04f2, 0xb604)
	if !ok {
		t.Fatal("expected quirk for Chicony 04f2:b604")
	}
	if q.Name == "" {
		t.Fatal("quirk name must not be empty")
	}
}

func TestLookupQuirkNotFound(t *testing.T) {
	_, ok := lookupQuirk(0xffff, 0xffff)
	if ok {
		t.Fatal("unexpected quirk match for unknown vendor/product")
	}
}

func TestDeactivatePayloadLengthMatchesActivation(t *testing.T) {
	for _, q := range quirkTable {
		zero := make([]byte, len(q.Payload))
		for _, b := range zero {
			if b != 0 {
				t.Fatalf("quirk %s: zero payload not actually zero", q.Name)
			}
		}
	}
}
