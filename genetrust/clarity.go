package genetrust

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"
)

// Type is the Clarity consensus type prefix.
type Type byte

const (
	TypeInt           Type = 0x00
	TypeUInt          Type = 0x01
	TypeBuffer        Type = 0x02
	TypeTrue          Type = 0x03
	TypeFalse         Type = 0x04
	TypeStandardPrinc Type = 0x05
	TypeContractPrinc Type = 0x06
	TypeResponseOk    Type = 0x07
	TypeResponseErr   Type = 0x08
	TypeOptionalNone  Type = 0x09
	TypeOptionalSome  Type = 0x0a
	TypeList          Type = 0x0b
	TypeTuple         Type = 0x0c
	TypeStringASCII   Type = 0x0d
	TypeStringUTF8    Type = 0x0e
)

const maxContractNameSize = 128

// Value is one Clarity value. Only the fields matching Type are meaningful.
type Value struct {
	Type Type

	Int   *big.Int // int, uint
	Bytes []byte   // buffer
	Str   string   // strings, principals in address[.name] form
	Inner *Value   // some, ok, err
	List  []*Value
	Tuple map[string]*Value
}

func UInt(v uint64) *Value {
	return &Value{Type: TypeUInt, Int: new(big.Int).SetUint64(v)}
}

func Int(v int64) *Value {
	return &Value{Type: TypeInt, Int: big.NewInt(v)}
}

func Bool(b bool) *Value {
	if b {
		return &Value{Type: TypeTrue}
	}
	return &Value{Type: TypeFalse}
}

func Buffer(b []byte) *Value {
	return &Value{Type: TypeBuffer, Bytes: b}
}

func StringUTF8(s string) *Value {
	return &Value{Type: TypeStringUTF8, Str: s}
}

func StringASCII(s string) *Value {
	return &Value{Type: TypeStringASCII, Str: s}
}

func None() *Value {
	return &Value{Type: TypeOptionalNone}
}

func Some(v *Value) *Value {
	return &Value{Type: TypeOptionalSome, Inner: v}
}

func Ok(v *Value) *Value {
	return &Value{Type: TypeResponseOk, Inner: v}
}

func Err(v *Value) *Value {
	return &Value{Type: TypeResponseErr, Inner: v}
}

func List(items ...*Value) *Value {
	return &Value{Type: TypeList, List: items}
}

func Tuple(fields map[string]*Value) *Value {
	return &Value{Type: TypeTuple, Tuple: fields}
}

// Principal accepts "SP..." or "SP....contract-name".
func Principal(s string) (*Value, error) {
	addr, name, _ := strings.Cut(s, ".")
	if _, err := ParseAddress(addr); err != nil {
		return nil, err
	}
	if name == "" {
		return &Value{Type: TypeStandardPrinc, Str: addr}, nil
	}
	if len(name) > maxContractNameSize {
		return nil, fmt.Errorf("contract name %q too long", name)
	}
	return &Value{Type: TypeContractPrinc, Str: s}, nil
}

// Serialize writes the consensus encoding.
func (v *Value) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hex is the 0x prefixed encoding used by the node API and wallet apps.
func (v *Value) Hex() (string, error) {
	b, err := v.Serialize()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

func (v *Value) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(byte(v.Type))
	switch v.Type {
	case TypeInt, TypeUInt:
		return writeInt128(buf, v.Int, v.Type == TypeInt)
	case TypeBuffer:
		writeLen(buf, len(v.Bytes))
		buf.Write(v.Bytes)
	case TypeTrue, TypeFalse, TypeOptionalNone:
	case TypeStandardPrinc, TypeContractPrinc:
		addrStr, name, _ := strings.Cut(v.Str, ".")
		addr, err := ParseAddress(addrStr)
		if err != nil {
			return err
		}
		buf.WriteByte(addr.Version)
		buf.Write(addr.Hash160[:])
		if v.Type == TypeContractPrinc {
			buf.WriteByte(byte(len(name)))
			buf.WriteString(name)
		}
	case TypeResponseOk, TypeResponseErr, TypeOptionalSome:
		if v.Inner == nil {
			return fmt.Errorf("clarity value 0x%02x without inner value", byte(v.Type))
		}
		return v.Inner.writeTo(buf)
	case TypeList:
		writeLen(buf, len(v.List))
		for _, item := range v.List {
			if err := item.writeTo(buf); err != nil {
				return err
			}
		}
	case TypeTuple:
		names := make([]string, 0, len(v.Tuple))
		for name := range v.Tuple {
			names = append(names, name)
		}
		// consensus order is lexicographic
		sort.Strings(names)
		writeLen(buf, len(names))
		for _, name := range names {
			buf.WriteByte(byte(len(name)))
			buf.WriteString(name)
			if err := v.Tuple[name].writeTo(buf); err != nil {
				return err
			}
		}
	case TypeStringASCII, TypeStringUTF8:
		if v.Type == TypeStringUTF8 && !utf8.ValidString(v.Str) {
			return fmt.Errorf("invalid utf8 string")
		}
		writeLen(buf, len(v.Str))
		buf.WriteString(v.Str)
	default:
		return fmt.Errorf("unknown clarity type 0x%02x", byte(v.Type))
	}
	return nil
}

func writeLen(buf *bytes.Buffer, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

func writeInt128(buf *bytes.Buffer, n *big.Int, signed bool) error {
	if n == nil {
		n = new(big.Int)
	}
	if !signed && n.Sign() < 0 {
		return fmt.Errorf("negative uint %s", n)
	}
	if n.BitLen() > 127 && (signed || n.BitLen() > 128) {
		return fmt.Errorf("integer %s overflows 128 bits", n)
	}
	var out [16]byte
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		// two's complement
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	v.FillBytes(out[:])
	buf.Write(out[:])
	return nil
}

// DecodeHex parses a 0x prefixed serialized value.
func DecodeHex(s string) (*Value, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode clarity hex: %w", err)
	}
	return Deserialize(raw)
}

func Deserialize(raw []byte) (*Value, error) {
	r := bytes.NewReader(raw)
	v, err := readValue(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after clarity value", r.Len())
	}
	return v, nil
}

func readValue(r *bytes.Reader) (*Value, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read clarity type: %w", err)
	}
	v := &Value{Type: Type(prefix)}
	switch v.Type {
	case TypeInt, TypeUInt:
		b, err := readN(r, 16)
		if err != nil {
			return nil, err
		}
		v.Int = new(big.Int).SetBytes(b)
		if v.Type == TypeInt && b[0]&0x80 != 0 {
			v.Int.Sub(v.Int, new(big.Int).Lsh(big.NewInt(1), 128))
		}
	case TypeBuffer:
		if v.Bytes, err = readPrefixed(r); err != nil {
			return nil, err
		}
	case TypeTrue, TypeFalse, TypeOptionalNone:
	case TypeStandardPrinc, TypeContractPrinc:
		b, err := readN(r, 21)
		if err != nil {
			return nil, err
		}
		var addr Address
		addr.Version = b[0]
		copy(addr.Hash160[:], b[1:])
		v.Str = addr.String()
		if v.Type == TypeContractPrinc {
			n, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			name, err := readN(r, int(n))
			if err != nil {
				return nil, err
			}
			v.Str += "." + string(name)
		}
	case TypeResponseOk, TypeResponseErr, TypeOptionalSome:
		if v.Inner, err = readValue(r); err != nil {
			return nil, err
		}
	case TypeList:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < n; i++ {
			item, err := readValue(r)
			if err != nil {
				return nil, err
			}
			v.List = append(v.List, item)
		}
	case TypeTuple:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		v.Tuple = make(map[string]*Value, n)
		for i := uint32(0); i < n; i++ {
			l, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			name, err := readN(r, int(l))
			if err != nil {
				return nil, err
			}
			field, err := readValue(r)
			if err != nil {
				return nil, err
			}
			v.Tuple[string(name)] = field
		}
	case TypeStringASCII, TypeStringUTF8:
		b, err := readPrefixed(r)
		if err != nil {
			return nil, err
		}
		v.Str = string(b)
	default:
		return nil, fmt.Errorf("unknown clarity type 0x%02x", prefix)
	}
	return v, nil
}

func readN(r *bytes.Reader, n int) ([]byte, error) {
	if n > r.Len() {
		return nil, fmt.Errorf("clarity value truncated: want %d bytes, have %d", n, r.Len())
	}
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b, nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	b, err := readN(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return readN(r, int(n))
}

// Field returns a tuple member or nil.
func (v *Value) Field(name string) *Value {
	if v == nil || v.Type != TypeTuple {
		return nil
	}
	return v.Tuple[name]
}

func (v *Value) Uint64() (uint64, error) {
	if v == nil || (v.Type != TypeUInt && v.Type != TypeInt) || v.Int == nil {
		return 0, fmt.Errorf("not an integer value")
	}
	if !v.Int.IsUint64() {
		return 0, fmt.Errorf("integer %s does not fit uint64", v.Int)
	}
	return v.Int.Uint64(), nil
}

func (v *Value) BoolValue() (bool, error) {
	if v == nil {
		return false, fmt.Errorf("nil value")
	}
	switch v.Type {
	case TypeTrue:
		return true, nil
	case TypeFalse:
		return false, nil
	}
	return false, fmt.Errorf("not a bool value")
}

// Unwrap strips one optional/response layer. ok reports whether the layer was some/ok.
func (v *Value) Unwrap() (inner *Value, ok bool) {
	if v == nil {
		return nil, false
	}
	switch v.Type {
	case TypeOptionalSome, TypeResponseOk:
		return v.Inner, true
	case TypeResponseErr:
		return v.Inner, false
	case TypeOptionalNone:
		return nil, false
	}
	return v, true
}
