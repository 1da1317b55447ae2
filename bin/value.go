// Package bin implements the BIN Codec (spec.md §4.3): a typed property
// tree with a lossless binary wire format and a human-editable textual
// ("ritobin") form. The wire format here is an original design for this
// repo — no Go library in the retrieval pack implements the proprietary
// on-disk layout, so only the abstract tree and round-trip guarantee are
// reproduced (see DESIGN.md).
package bin

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindVec2
	KindVec3
	KindVec4
	KindMtx44
	KindColor
	KindString
	KindHash
	KindContainer
	KindUnorderedContainer
	KindStruct
	KindEmbedded
	KindOptional
	KindMap
)

// Value is the tagged union every property, container element, struct
// field and map key/value holds (spec.md §3, §9 "dynamic dispatch over
// property values" — modeled as a fixed closed set of variants, never open
// polymorphism).
type Value interface {
	Kind() Kind
}

type (
	BoolValue   bool
	I8Value     int8
	I16Value    int16
	I32Value    int32
	I64Value    int64
	U8Value     uint8
	U16Value    uint16
	U32Value    uint32
	U64Value    uint64
	F32Value    float32
	StringValue string
	HashValue   uint32
)

func (BoolValue) Kind() Kind   { return KindBool }
func (I8Value) Kind() Kind     { return KindI8 }
func (I16Value) Kind() Kind    { return KindI16 }
func (I32Value) Kind() Kind    { return KindI32 }
func (I64Value) Kind() Kind    { return KindI64 }
func (U8Value) Kind() Kind     { return KindU8 }
func (U16Value) Kind() Kind    { return KindU16 }
func (U32Value) Kind() Kind    { return KindU32 }
func (U64Value) Kind() Kind    { return KindU64 }
func (F32Value) Kind() Kind    { return KindF32 }
func (StringValue) Kind() Kind { return KindString }
func (HashValue) Kind() Kind   { return KindHash }

// Vec2Value, Vec3Value, Vec4Value are fixed-length float vectors.
type (
	Vec2Value  [2]float32
	Vec3Value  [3]float32
	Vec4Value  [4]float32
	Mtx44Value [16]float32
	// ColorValue is RGBA, each channel 0-255.
	ColorValue [4]uint8
)

func (Vec2Value) Kind() Kind  { return KindVec2 }
func (Vec3Value) Kind() Kind  { return KindVec3 }
func (Vec4Value) Kind() Kind  { return KindVec4 }
func (Mtx44Value) Kind() Kind { return KindMtx44 }
func (ColorValue) Kind() Kind { return KindColor }

// ContainerValue is an ordered, homogeneously-typed list (spec.md §3
// invariant: "container element type is homogeneous").
type ContainerValue struct {
	ElemKind Kind
	Items    []Value
}

func (ContainerValue) Kind() Kind { return KindContainer }

// UnorderedContainerValue is wire-identical to ContainerValue but carries
// no ordering guarantee across a round-trip beyond "same multiset".
type UnorderedContainerValue struct {
	ElemKind Kind
	Items    []Value
}

func (UnorderedContainerValue) Kind() Kind { return KindUnorderedContainer }

// StructValue is a nested, named property bag sharing Object's shape but
// embedded inline as a value rather than addressed by its own object hash.
type StructValue struct {
	ClassHash  uint32
	Properties map[uint32]Value
}

func (StructValue) Kind() Kind { return KindStruct }

// EmbeddedValue is wire-distinct from StructValue only in its kind tag;
// both carry a class hash and a property map.
type EmbeddedValue struct {
	ClassHash  uint32
	Properties map[uint32]Value
}

func (EmbeddedValue) Kind() Kind { return KindEmbedded }

// OptionalValue holds at most one Value of a fixed element kind.
type OptionalValue struct {
	ElemKind Kind
	Value    Value // nil when absent
}

func (OptionalValue) Kind() Kind { return KindOptional }

// MapEntry is one key/value pair of a MapValue. Keys are immutable during
// string-leaf rewriting (spec.md §4.3: "keys are treated as immutable for
// rewriting; they participate only in reads").
type MapEntry struct {
	Key   Value
	Value Value
}

// MapValue is an ordered sequence of key/value pairs (spec.md §3 invariant:
// "every map key is unique").
type MapValue struct {
	KeyKind Kind
	ValKind Kind
	Entries []MapEntry
}

func (MapValue) Kind() Kind { return KindMap }
