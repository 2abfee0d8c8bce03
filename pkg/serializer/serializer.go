package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Serialize accepts an arbitrary value or pointer and returns its []byte representation.
// Integers are fixed-width little endian, slices carry a general-natural length
// prefix, arrays and structs are written element by element, pointers carry a
// one-byte presence tag.
func Serialize(v any) []byte {
	val := reflect.ValueOf(v)

	if val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	serializeValue(val, buf)

	return buf.Bytes()
}

func Deserialize(data []byte, target any) error {
	// Ensure target is a pointer
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return errors.New("deserialize target must be a non-nil pointer")
	}

	buf := bytes.NewBuffer(data)
	if err := deserializeValue(val.Elem(), buf); err != nil {
		return err
	}

	// Check if there are leftover bytes
	if buf.Len() > 0 {
		return errors.Newf("extra %d bytes left after deserialization (data: %x)", buf.Len(), data)
	}

	return nil
}

// serializeValue writes value v to buf
func serializeValue(v reflect.Value, buf *bytes.Buffer) {
	typ := v.Type()

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			buf.WriteByte(0)
			return
		}
		buf.WriteByte(1)
		serializeValue(v.Elem(), buf)
		return

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			serializeValue(v.Field(i), buf)
		}
		return

	case reflect.Array, reflect.Slice:
		serializeSlice(v, buf)
		return

	case reflect.Bool:
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return

	case reflect.String:
		buf.Write(EncodeGeneralNatural(uint64(v.Len())))
		buf.WriteString(v.String())
		return

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l := int(typ.Size())
		buf.Write(EncodeLittleEndian(l, SignedToUnsigned(l, v.Int())))
		return

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		l := int(typ.Size())
		buf.Write(EncodeLittleEndian(l, v.Uint()))
		return

	default:
		panic(fmt.Sprintf("unsupported kind: %s", v.Kind()))
	}
}

// deserializeValue is the recursive helper that reads from buf into value v
func deserializeValue(v reflect.Value, buf *bytes.Buffer) error {
	vType := v.Type()

	switch v.Kind() {
	case reflect.Ptr:
		b, err := buf.ReadByte()
		if err != nil {
			return errors.Wrap(err, "failed to read pointer tag")
		}
		switch b {
		case 0:
			v.Set(reflect.Zero(vType))
			return nil
		case 1:
		default:
			return errors.Newf("invalid pointer tag %d", b)
		}

		if v.IsNil() {
			v.Set(reflect.New(vType.Elem()))
		}
		return deserializeValue(v.Elem(), buf)

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := deserializeValue(v.Field(i), buf); err != nil {
				return errors.Wrapf(err, "failed to deserialize field %s", vType.Field(i).Name)
			}
		}
		return nil

	case reflect.Array, reflect.Slice:
		return deserializeSlice(v, buf)

	case reflect.Bool:
		b, err := buf.ReadByte()
		if err != nil {
			return errors.Wrap(err, "failed to read bool")
		}
		if b > 1 {
			return errors.Newf("invalid bool octet %d", b)
		}
		v.SetBool(b == 1)
		return nil

	case reflect.String:
		length, err := readLength(buf)
		if err != nil {
			return err
		}
		s := make([]byte, length)
		if _, err := io.ReadFull(buf, s); err != nil {
			return errors.Wrap(err, "failed to read string data")
		}
		v.SetString(string(s))
		return nil

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l := int(vType.Size())

		var octets [8]byte
		if _, err := io.ReadFull(buf, octets[:l]); err != nil {
			return errors.Wrap(err, "failed to read integer bytes")
		}
		v.SetInt(UnsignedToSigned(l, DecodeLittleEndian(octets[:l])))
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		l := int(vType.Size())

		var octets [8]byte
		if _, err := io.ReadFull(buf, octets[:l]); err != nil {
			return errors.Wrap(err, "failed to read unsigned integer bytes")
		}
		v.SetUint(DecodeLittleEndian(octets[:l]))
		return nil

	default:
		return errors.Newf("unsupported kind for deserialization: %s", v.Kind())
	}
}

// serializeSlice handles both arrays and slices.
// For slices (but not arrays), it encodes the length first.
func serializeSlice(v reflect.Value, buf *bytes.Buffer) {
	vKind := v.Kind()
	vLen := v.Len()
	vType := v.Type()

	if vKind == reflect.Slice {
		buf.Write(EncodeGeneralNatural(uint64(vLen)))
	}

	// Fast path for byte slices/arrays - write bulk data instead of element-by-element
	if vType.Elem().Kind() == reflect.Uint8 {
		if vKind == reflect.Slice {
			buf.Write(v.Bytes())
		} else if v.CanAddr() {
			buf.Write(unsafe.Slice((*byte)(unsafe.Pointer(v.UnsafeAddr())), vLen))
		} else {
			slice := reflect.MakeSlice(reflect.SliceOf(vType.Elem()), vLen, vLen)
			reflect.Copy(slice, v)
			buf.Write(slice.Bytes())
		}
		return
	}

	for i := 0; i < vLen; i++ {
		serializeValue(v.Index(i), buf)
	}
}

// deserializeSlice is a helper to deserialize arrays and slices
func deserializeSlice(v reflect.Value, buf *bytes.Buffer) error {
	vKind := v.Kind()
	vType := v.Type()

	length := v.Len()
	if vKind == reflect.Slice {
		decoded, err := readLength(buf)
		if err != nil {
			return err
		}
		length = decoded
		v.Set(reflect.MakeSlice(vType, length, length))
	}

	if vType.Elem().Kind() == reflect.Uint8 {
		if vKind == reflect.Slice {
			if _, err := io.ReadFull(buf, v.Bytes()); err != nil {
				return errors.Wrap(err, "failed to read byte slice data")
			}
			return nil
		}
		if v.CanAddr() {
			data := unsafe.Slice((*byte)(unsafe.Pointer(v.UnsafeAddr())), length)
			if _, err := io.ReadFull(buf, data); err != nil {
				return errors.Wrap(err, "failed to read byte array data")
			}
			return nil
		}
	}

	for i := 0; i < length; i++ {
		if err := deserializeValue(v.Index(i), buf); err != nil {
			return errors.Wrapf(err, "failed to deserialize element %d", i)
		}
	}
	return nil
}

// readLength consumes a general-natural length prefix. A length that exceeds
// the bytes left in buf cannot describe a valid encoding.
func readLength(buf *bytes.Buffer) (int, error) {
	decoded, n, ok := DecodeGeneralNatural(buf.Bytes())
	if !ok {
		return 0, errors.New("failed to decode length prefix")
	}
	buf.Next(n)
	if decoded > uint64(buf.Len()) {
		return 0, errors.Newf("length %d exceeds remaining %d bytes", decoded, buf.Len())
	}
	return int(decoded), nil
}

// EncodeGeneralNatural encodes a uint64 value using the compact encoding format.
// It follows three cases:
//  1. x == 0: output a single 0x00 octet.
//  2. x fits in a computed header + remainder format.
//  3. Otherwise, output 0xFF followed by x as 8 little-endian octets.
func EncodeGeneralNatural(x uint64) []byte {
	if x == 0 {
		return []byte{0x00}
	}

	// l = floor(log2(x)/7)
	l := uint((bits.Len64(x) - 1) / 7)

	if l < 8 {
		// Header: 2^8 - 2^(8-l) + ⌊x/(2^(8l))⌋
		header := (1 << 8) - (1 << (8 - l)) + (x >> (8 * l))
		result := []byte{byte(header)}
		if l > 0 {
			remainder := x & ((uint64(1) << (8 * l)) - 1)
			result = append(result, EncodeLittleEndian(int(l), remainder)...)
		}
		return result
	}

	result := make([]byte, 9)
	result[0] = 0xFF
	binary.LittleEndian.PutUint64(result[1:], x)
	return result
}

func DecodeGeneralNatural(p []byte) (x uint64, n int, ok bool) {
	if len(p) == 0 {
		return 0, 0, false
	}

	header := p[0]
	if header == 0x00 {
		return 0, 1, true
	}
	if header == 0xFF {
		if len(p) < 9 {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(p[1:9]), 9, true
	}

	// The number of leading ones in the header is the count of remainder octets.
	l := bits.LeadingZeros8(^header)
	base := byte(int(1<<8) - (1 << (8 - l)))
	high := uint64(header - base)
	if len(p) < 1+l {
		return 0, 0, false
	}
	remainder := DecodeLittleEndian(p[1 : 1+l])
	return (high << (8 * l)) | remainder, 1 + l, true
}

func EncodeLittleEndian(octets int, x uint64) []byte {
	switch octets {
	case 1:
		return []byte{byte(x)}
	case 2:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(x))
		return buf[:]
	case 4:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(x))
		return buf[:]
	case 8:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], x)
		return buf[:]
	default:
		result := make([]byte, octets)
		for i := 0; i < octets; i++ {
			result[i] = byte(x)
			x >>= 8
		}
		return result
	}
}

func DecodeLittleEndian(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		var x uint64
		for i, v := range b {
			x |= uint64(v) << (8 * i)
		}
		return x
	}
}

// UnsignedToSigned converts an unsigned integer x (assumed to be in [0, 2^(8*n)))
// into its two's complement signed representation as an int64.
func UnsignedToSigned(octets int, x uint64) int64 {
	if octets < 1 || octets > 8 {
		panic(fmt.Sprintf("Unsupported octet width: %d (max 8 allowed)", octets))
	}
	if octets == 8 {
		return int64(x)
	}
	return int64(SignExtend64(x, uint(8*octets)))
}

// SignedToUnsigned converts a signed integer a, assumed to be in the range
// [ -2^(8*l-1), 2^(8*l-1) - 1 ], into its unsigned natural representation
// in [0, 2^(8*l)).
func SignedToUnsigned(octets int, a int64) uint64 {
	if octets == 8 {
		return uint64(a)
	}
	modVal := uint64(1) << uint(8*octets)
	return uint64(a) & (modVal - 1)
}
