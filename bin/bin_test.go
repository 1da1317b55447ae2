package bin

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Tree {
	t := NewTree(3)
	t.Dependencies = []string{"Maps/Shipping/Common"}
	t.Objects[0x1000] = Object{
		ClassHash: 0x2000,
		Properties: map[uint32]Value{
			0x3000: StringValue("assets/sounds/sfx/foo.bnk"),
			0x3001: I32Value(-7),
			0x3002: ContainerValue{
				ElemKind: KindString,
				Items:    []Value{StringValue("data/a.bin"), StringValue("data/b.bin")},
			},
			0x3003: StructValue{
				ClassHash: 0x4000,
				Properties: map[uint32]Value{
					0x5000: StringValue("nested/path.dds"),
				},
			},
			0x3004: OptionalValue{ElemKind: KindString, Value: StringValue("optional/value.bin")},
			0x3005: MapValue{
				KeyKind: KindU32, ValKind: KindString,
				Entries: []MapEntry{{Key: U32Value(1), Value: StringValue("map/entry.bin")}},
			},
			0x3006: Vec3Value{1, 2, 3},
			0x3007: ColorValue{255, 0, 128, 255},
		},
	}
	return t
}

func TestWireRoundTrip(t *testing.T) {
	tree := sampleTree()
	data, err := Write(tree)
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("tree mismatch after wire round-trip (-want +got):\n%s", diff)
	}
}

func TestWireInvalidMagic(t *testing.T) {
	_, err := Read([]byte{0, 1, 2, 3})
	require.Error(t, err)
}

func TestWalkStringsReplacesNestedLeaves(t *testing.T) {
	tree := sampleTree()
	n := WalkStrings(tree, func(s string) (string, bool) {
		if s == "nested/path.dds" {
			return "rewritten/path.dds", true
		}
		return s, false
	})
	assert.Equal(t, 1, n)

	obj := tree.Objects[0x1000]
	structVal := obj.Properties[0x3003].(StructValue)
	assert.Equal(t, StringValue("rewritten/path.dds"), structVal.Properties[0x5000])
}

func TestCollectStringLeavesFindsAllNesting(t *testing.T) {
	tree := sampleTree()
	leaves := CollectStringLeaves(tree)
	assert.Contains(t, leaves, "assets/sounds/sfx/foo.bnk")
	assert.Contains(t, leaves, "data/a.bin")
	assert.Contains(t, leaves, "data/b.bin")
	assert.Contains(t, leaves, "nested/path.dds")
	assert.Contains(t, leaves, "optional/value.bin")
	assert.Contains(t, leaves, "map/entry.bin")
}

func TestFormatParseRoundTrip(t *testing.T) {
	tree := sampleTree()
	text := Format(tree, nil)

	got, err := Parse(text)
	require.NoError(t, err)
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("tree mismatch after text round-trip (-want +got):\n%s", diff)
	}
}
