package calldata

import (
	"bytes"
	"errors"
	"math/big"
	"reflect"
	"testing"
)

func TestEncodeKnownBytes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []byte
	}{
		{"null", nil, []byte{0x00}},
		{"false", false, []byte{0x08}},
		{"true", true, []byte{0x10}},
		{"zero", 0, []byte{0x01}},
		{"small int", 5, []byte{5<<3 | typePosInt}},
		{"minus one", -1, []byte{0x02}},
		{"two byte int", 16, []byte{0x81, 0x01}},
		{"string", "hi", []byte{2<<3 | typeStr, 'h', 'i'}},
		{"bytes", []byte{0xAA}, []byte{1<<3 | typeBytes, 0xAA}},
		{"empty array", []any{}, []byte{typeArr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode(%v) failed: %v", tt.in, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%v) = %x, want %x", tt.in, got, tt.want)
			}
		})
	}
}

func TestMethodCallRoundTrip(t *testing.T) {
	data, err := Encode(MethodCall("submit_answer", []any{7, "a haiku about rain"}))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	want := map[string]any{
		"method": "submit_answer",
		"args":   []any{int64(7), "a haiku about rain"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestMapKeysAreSorted(t *testing.T) {
	a, err := Encode(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(map[string]int{"a": 2, "b": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("expected canonical encoding, got %x and %x", a, b)
	}
}

func TestBigIntegers(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	data, err := Encode(huge)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	gotInt, ok := got.(*big.Int)
	if !ok || gotInt.Cmp(huge) != 0 {
		t.Errorf("expected %s, got %v", huge, got)
	}

	data, err = Encode(int64(-300))
	if err != nil {
		t.Fatal(err)
	}
	got, err = Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(-300) {
		t.Errorf("expected -300, got %v", got)
	}
}

func TestAddress(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000Ab")
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	if addr.String() != "0x00000000000000000000000000000000000000ab" {
		t.Errorf("unexpected address string %s", addr.String())
	}

	data, err := Encode(addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1+AddressLength {
		t.Fatalf("expected %d bytes, got %d", 1+AddressLength, len(data))
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Errorf("address round trip mismatch: %v", got)
	}

	for _, bad := range []string{"", "abc", "0x1234", "0xzz00000000000000000000000000000000000000"} {
		if IsAddress(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte{5<<3 | typeStr, 'a'}); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	if _, err := Decode([]byte{0x00, 0x00}); !errors.Is(err, ErrTrailing) {
		t.Errorf("expected ErrTrailing, got %v", err)
	}
	if _, err := Decode([]byte{0x07}); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("expected ErrInvalidTag, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated on empty input, got %v", err)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := Encode(3.14); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for float, got %v", err)
	}
	if _, err := Encode(map[int]any{1: 1}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for int-keyed map, got %v", err)
	}
}
