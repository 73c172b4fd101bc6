// Package calldata implements the GenLayer calldata wire format.
//
// Every value starts with an unsigned LEB128 header whose low three bits carry
// the type tag and whose remaining bits carry the payload (an integer value or
// a length). Map keys are written as a bare length-prefixed UTF-8 string and
// are sorted so that encodings are canonical.
//
//	data, err := calldata.Encode(calldata.MethodCall("get_room_leaderboard", []any{3}))
package calldata

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
)

const (
	typeSpecial = 0
	typePosInt  = 1
	typeNegInt  = 2
	typeBytes   = 3
	typeStr     = 4
	typeArr     = 5
	typeMap     = 6
)

const (
	specialNull  = 0<<3 | typeSpecial
	specialFalse = 1<<3 | typeSpecial
	specialTrue  = 2<<3 | typeSpecial
	specialAddr  = 3<<3 | typeSpecial
)

// AddressLength is the size of an account or contract address in bytes.
const AddressLength = 20

var (
	ErrTruncated   = errors.New("calldata: truncated input")
	ErrTrailing    = errors.New("calldata: trailing bytes after value")
	ErrInvalidTag  = errors.New("calldata: invalid type tag")
	ErrUnsupported = errors.New("calldata: unsupported value type")
)

// Address is a 20-byte account or contract address.
type Address [AddressLength]byte

// ParseAddress parses a 0x-prefixed, 40 hex digit address.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return a, fmt.Errorf("calldata: address %q missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, fmt.Errorf("calldata: address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("calldata: address %q has %d bytes, want %d", s, len(raw), AddressLength)
	}
	copy(a[:], raw)
	return a, nil
}

// IsAddress reports whether s is a well-formed hex address.
func IsAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MethodCall builds the value the contract runtime expects for a call.
func MethodCall(method string, args []any) map[string]any {
	if args == nil {
		args = []any{}
	}
	return map[string]any{
		"method": method,
		"args":   args,
	}
}

// Encode serialises v. Supported values are nil, bool, every Go integer kind,
// *big.Int, string, []byte, Address, slices and arrays, and maps keyed by
// string.
func Encode(v any) ([]byte, error) {
	var buf []byte
	buf, err := appendValue(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buf, specialNull), nil
	case bool:
		if val {
			return append(buf, specialTrue), nil
		}
		return append(buf, specialFalse), nil
	case Address:
		buf = append(buf, specialAddr)
		return append(buf, val[:]...), nil
	case *big.Int:
		if val == nil {
			return append(buf, specialNull), nil
		}
		return appendInt(buf, val), nil
	case string:
		buf = appendHeader(buf, big.NewInt(int64(len(val))), typeStr)
		return append(buf, val...), nil
	case []byte:
		buf = appendHeader(buf, big.NewInt(int64(len(val))), typeBytes)
		return append(buf, val...), nil
	case []any:
		buf = appendHeader(buf, big.NewInt(int64(len(val))), typeArr)
		for i, item := range val {
			var err error
			if buf, err = appendValue(buf, item); err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
		}
		return buf, nil
	case map[string]any:
		return appendMap(buf, val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return appendValue(buf, rv.String())
	case reflect.Bool:
		return appendValue(buf, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return appendInt(buf, big.NewInt(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return appendInt(buf, new(big.Int).SetUint64(rv.Uint())), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return append(buf, specialNull), nil
		}
		return appendValue(buf, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		buf = appendHeader(buf, big.NewInt(int64(n)), typeArr)
		for i := 0; i < n; i++ {
			var err error
			if buf, err = appendValue(buf, rv.Index(i).Interface()); err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
		}
		return buf, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupported, rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return appendMap(buf, m)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
}

func appendMap(buf []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = appendHeader(buf, big.NewInt(int64(len(keys))), typeMap)
	for _, k := range keys {
		buf = appendUleb(buf, big.NewInt(int64(len(k))))
		buf = append(buf, k...)
		var err error
		if buf, err = appendValue(buf, m[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return buf, nil
}

func appendInt(buf []byte, n *big.Int) []byte {
	if n.Sign() >= 0 {
		return appendHeader(buf, n, typePosInt)
	}
	// -n - 1 keeps the negative range dense: -1 encodes as 0.
	neg := new(big.Int).Neg(n)
	neg.Sub(neg, big.NewInt(1))
	return appendHeader(buf, neg, typeNegInt)
}

func appendHeader(buf []byte, payload *big.Int, tag int64) []byte {
	h := new(big.Int).Lsh(payload, 3)
	h.Or(h, big.NewInt(tag))
	return appendUleb(buf, h)
}

func appendUleb(buf []byte, n *big.Int) []byte {
	v := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	for {
		b := byte(new(big.Int).And(v, mask).Uint64())
		v.Rsh(v, 7)
		if v.Sign() == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// Decode parses a single value and rejects trailing input. Integers decode to
// int64 when they fit and *big.Int otherwise; maps decode to map[string]any,
// arrays to []any, strings to string, bytes to []byte and addresses to Address.
func Decode(data []byte) (any, error) {
	d := decoder{data: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, ErrTrailing
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) uleb() (*big.Int, error) {
	out := new(big.Int)
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return nil, ErrTruncated
		}
		b := d.data[d.pos]
		d.pos++
		part := new(big.Int).SetUint64(uint64(b & 0x7f))
		out.Or(out, part.Lsh(part, shift))
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
	}
}

func (d *decoder) take(n *big.Int) ([]byte, error) {
	if !n.IsInt64() || n.Int64() > int64(len(d.data)-d.pos) {
		return nil, ErrTruncated
	}
	end := d.pos + int(n.Int64())
	out := d.data[d.pos:end]
	d.pos = end
	return out, nil
}

func (d *decoder) value() (any, error) {
	h, err := d.uleb()
	if err != nil {
		return nil, err
	}
	tag := new(big.Int).And(h, big.NewInt(7)).Int64()
	payload := new(big.Int).Rsh(h, 3)

	switch tag {
	case typeSpecial:
		if !payload.IsInt64() {
			return nil, ErrInvalidTag
		}
		switch payload.Int64() << 3 {
		case specialNull:
			return nil, nil
		case specialFalse:
			return false, nil
		case specialTrue:
			return true, nil
		case specialAddr:
			raw, err := d.take(big.NewInt(AddressLength))
			if err != nil {
				return nil, err
			}
			var a Address
			copy(a[:], raw)
			return a, nil
		}
		return nil, fmt.Errorf("%w: special %s", ErrInvalidTag, payload)
	case typePosInt:
		return normalizeInt(payload), nil
	case typeNegInt:
		n := new(big.Int).Add(payload, big.NewInt(1))
		return normalizeInt(n.Neg(n)), nil
	case typeBytes:
		raw, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), raw...), nil
	case typeStr:
		raw, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case typeArr:
		if !payload.IsInt64() || payload.Int64() > int64(len(d.data)-d.pos) {
			return nil, ErrTruncated
		}
		n := int(payload.Int64())
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			item, err := d.value()
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case typeMap:
		if !payload.IsInt64() || payload.Int64() > int64(len(d.data)-d.pos) {
			return nil, ErrTruncated
		}
		n := int(payload.Int64())
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			klen, err := d.uleb()
			if err != nil {
				return nil, err
			}
			key, err := d.take(klen)
			if err != nil {
				return nil, err
			}
			item, err := d.value()
			if err != nil {
				return nil, err
			}
			out[string(key)] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidTag, tag)
}

func normalizeInt(n *big.Int) any {
	if n.IsInt64() {
		return n.Int64()
	}
	return n
}
