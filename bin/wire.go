package bin

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// binMagic tags this repo's own BIN wire encoding; it has no relation to
// any proprietary container magic.
var binMagic = [4]byte{'F', 'B', 'I', 'N'}

// ErrInvalidBinMagic is returned when a byte stream doesn't begin with
// binMagic.
var ErrInvalidBinMagic = errors.New("bin: invalid magic")

// Read decodes a Tree from its wire form (spec.md §4.3: read(bytes) ->
// BinTree | BinError).
func Read(data []byte) (*Tree, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, &BinError{Message: "reading magic: " + err.Error()}
	}
	if magic != binMagic {
		return nil, &BinError{Message: ErrInvalidBinMagic.Error()}
	}

	version, err := readU32(r)
	if err != nil {
		return nil, &BinError{Message: "reading version: " + err.Error()}
	}

	depCount, err := readU32(r)
	if err != nil {
		return nil, &BinError{Message: "reading dependency count: " + err.Error()}
	}
	deps := make([]string, depCount)
	for i := range deps {
		s, err := readString(r)
		if err != nil {
			return nil, &BinError{Message: "reading dependency: " + err.Error()}
		}
		deps[i] = s
	}

	objCount, err := readU32(r)
	if err != nil {
		return nil, &BinError{Message: "reading object count: " + err.Error()}
	}
	objects := make(map[uint32]Object, objCount)
	for i := uint32(0); i < objCount; i++ {
		objHash, err := readU32(r)
		if err != nil {
			return nil, &BinError{Message: "reading object hash: " + err.Error()}
		}
		classHash, err := readU32(r)
		if err != nil {
			return nil, &BinError{Message: "reading class hash: " + err.Error()}
		}
		props, err := readProperties(r)
		if err != nil {
			return nil, &BinError{Message: "reading object properties: " + err.Error()}
		}
		objects[objHash] = Object{ClassHash: classHash, Properties: props}
	}

	return &Tree{Version: version, Dependencies: deps, Objects: objects}, nil
}

// Write encodes t to its wire form (spec.md §4.3: write(BinTree) -> bytes
// | BinError). Read(Write(t)) yields a tree equal to t. Objects and
// properties are written in Go map iteration order, so the bytes of two
// Writes of the same tree are not guaranteed to be identical.
func Write(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(binMagic[:])
	writeU32(&buf, t.Version)

	writeU32(&buf, uint32(len(t.Dependencies)))
	for _, d := range t.Dependencies {
		writeString(&buf, d)
	}

	writeU32(&buf, uint32(len(t.Objects)))
	for objHash, obj := range t.Objects {
		writeU32(&buf, objHash)
		writeU32(&buf, obj.ClassHash)
		if err := writeProperties(&buf, obj.Properties); err != nil {
			return nil, &BinError{Message: "writing object properties: " + err.Error()}
		}
	}

	return buf.Bytes(), nil
}

func readProperties(r *bytes.Reader) (map[uint32]Value, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	props := make(map[uint32]Value, count)
	for i := uint32(0); i < count; i++ {
		nameHash, err := readU32(r)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		props[nameHash] = v
	}
	return props, nil
}

func writeProperties(w *bytes.Buffer, props map[uint32]Value) error {
	writeU32(w, uint32(len(props)))
	for nameHash, v := range props {
		writeU32(w, nameHash)
		if err := encodeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(w *bytes.Buffer, v Value) error {
	w.WriteByte(byte(v.Kind()))
	switch val := v.(type) {
	case BoolValue:
		if val {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case I8Value:
		w.WriteByte(byte(val))
	case U8Value:
		w.WriteByte(byte(val))
	case I16Value:
		writeU16(w, uint16(val))
	case U16Value:
		writeU16(w, uint16(val))
	case I32Value:
		writeU32(w, uint32(val))
	case U32Value:
		writeU32(w, uint32(val))
	case HashValue:
		writeU32(w, uint32(val))
	case I64Value:
		writeU64(w, uint64(val))
	case U64Value:
		writeU64(w, uint64(val))
	case F32Value:
		writeU32(w, math.Float32bits(float32(val)))
	case Vec2Value:
		for _, f := range val {
			writeU32(w, math.Float32bits(f))
		}
	case Vec3Value:
		for _, f := range val {
			writeU32(w, math.Float32bits(f))
		}
	case Vec4Value:
		for _, f := range val {
			writeU32(w, math.Float32bits(f))
		}
	case Mtx44Value:
		for _, f := range val {
			writeU32(w, math.Float32bits(f))
		}
	case ColorValue:
		w.Write(val[:])
	case StringValue:
		writeString(w, string(val))
	case ContainerValue:
		w.WriteByte(byte(val.ElemKind))
		writeU32(w, uint32(len(val.Items)))
		for _, item := range val.Items {
			if err := encodeValue(w, item); err != nil {
				return err
			}
		}
	case UnorderedContainerValue:
		w.WriteByte(byte(val.ElemKind))
		writeU32(w, uint32(len(val.Items)))
		for _, item := range val.Items {
			if err := encodeValue(w, item); err != nil {
				return err
			}
		}
	case StructValue:
		writeU32(w, val.ClassHash)
		if err := writeProperties(w, val.Properties); err != nil {
			return err
		}
	case EmbeddedValue:
		writeU32(w, val.ClassHash)
		if err := writeProperties(w, val.Properties); err != nil {
			return err
		}
	case OptionalValue:
		w.WriteByte(byte(val.ElemKind))
		if val.Value == nil {
			w.WriteByte(0)
		} else {
			w.WriteByte(1)
			if err := encodeValue(w, val.Value); err != nil {
				return err
			}
		}
	case MapValue:
		w.WriteByte(byte(val.KeyKind))
		w.WriteByte(byte(val.ValKind))
		writeU32(w, uint32(len(val.Entries)))
		for _, e := range val.Entries {
			if err := encodeValue(w, e.Key); err != nil {
				return err
			}
			if err := encodeValue(w, e.Value); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("bin: unknown value kind %d", v.Kind())
	}
	return nil
}

func decodeValue(r *bytes.Reader) (Value, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch Kind(kindByte) {
	case KindBool:
		b, err := r.ReadByte()
		return BoolValue(b != 0), err
	case KindI8:
		b, err := r.ReadByte()
		return I8Value(int8(b)), err
	case KindU8:
		b, err := r.ReadByte()
		return U8Value(b), err
	case KindI16:
		v, err := readU16(r)
		return I16Value(int16(v)), err
	case KindU16:
		v, err := readU16(r)
		return U16Value(v), err
	case KindI32:
		v, err := readU32(r)
		return I32Value(int32(v)), err
	case KindU32:
		v, err := readU32(r)
		return U32Value(v), err
	case KindHash:
		v, err := readU32(r)
		return HashValue(v), err
	case KindI64:
		v, err := readU64(r)
		return I64Value(int64(v)), err
	case KindU64:
		v, err := readU64(r)
		return U64Value(v), err
	case KindF32:
		v, err := readU32(r)
		return F32Value(math.Float32frombits(v)), err
	case KindVec2:
		var out Vec2Value
		for i := range out {
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case KindVec3:
		var out Vec3Value
		for i := range out {
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case KindVec4:
		var out Vec4Value
		for i := range out {
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case KindMtx44:
		var out Mtx44Value
		for i := range out {
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case KindColor:
		var out ColorValue
		if _, err := io.ReadFull(r, out[:]); err != nil {
			return nil, err
		}
		return out, nil
	case KindString:
		s, err := readString(r)
		return StringValue(s), err
	case KindContainer:
		return decodeContainerLike(r, false)
	case KindUnorderedContainer:
		return decodeContainerLike(r, true)
	case KindStruct:
		classHash, err := readU32(r)
		if err != nil {
			return nil, err
		}
		props, err := readProperties(r)
		if err != nil {
			return nil, err
		}
		return StructValue{ClassHash: classHash, Properties: props}, nil
	case KindEmbedded:
		classHash, err := readU32(r)
		if err != nil {
			return nil, err
		}
		props, err := readProperties(r)
		if err != nil {
			return nil, err
		}
		return EmbeddedValue{ClassHash: classHash, Properties: props}, nil
	case KindOptional:
		elemKindByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		present, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		opt := OptionalValue{ElemKind: Kind(elemKindByte)}
		if present != 0 {
			v, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			opt.Value = v
		}
		return opt, nil
	case KindMap:
		keyKindByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		valKindByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		count, err := readU32(r)
		if err != nil {
			return nil, err
		}
		entries := make([]MapEntry, count)
		for i := uint32(0); i < count; i++ {
			k, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			entries[i] = MapEntry{Key: k, Value: v}
		}
		return MapValue{KeyKind: Kind(keyKindByte), ValKind: Kind(valKindByte), Entries: entries}, nil
	default:
		return nil, errors.Errorf("bin: unknown wire kind byte %d", kindByte)
	}
}

func decodeContainerLike(r *bytes.Reader, unordered bool) (Value, error) {
	elemKindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	items := make([]Value, count)
	for i := uint32(0); i < count; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	if unordered {
		return UnorderedContainerValue{ElemKind: Kind(elemKindByte), Items: items}, nil
	}
	return ContainerValue{ElemKind: Kind(elemKindByte), Items: items}, nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeU16(w *bytes.Buffer, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.Write(buf[:])
}

func writeU32(w *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}

func writeU64(w *bytes.Buffer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func writeString(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}
