package bin

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/flint-toolkit/flintcore/hashcat"
)

var kindNames = map[Kind]string{
	KindBool: "bool", KindI8: "i8", KindI16: "i16", KindI32: "i32", KindI64: "i64",
	KindU8: "u8", KindU16: "u16", KindU32: "u32", KindU64: "u64", KindF32: "f32",
	KindVec2: "vec2", KindVec3: "vec3", KindVec4: "vec4", KindMtx44: "mtx44",
	KindColor: "color", KindString: "str", KindHash: "hash",
	KindContainer: "container", KindUnorderedContainer: "ucontainer",
	KindStruct: "struct", KindEmbedded: "embed", KindOptional: "optional", KindMap: "map",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// fnv1a32 is the name->hash convention this format's resolver round trip
// relies on: formatting a hash whose name the catalog knows prints the
// name; parsing a bare name recomputes its hash with the same function.
func fnv1a32(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// hashToken renders hash as its catalog name when resolver knows it,
// else as a 0x-prefixed hex literal.
func hashToken(hash uint32, resolver hashcat.Resolver) string {
	if resolver != nil {
		if name := resolver.Resolve(uint64(hash)); !isHexFallback(name, uint64(hash)) {
			return name
		}
	}
	return fmt.Sprintf("0x%x", hash)
}

func isHexFallback(name string, hash uint64) bool {
	return name == fmt.Sprintf("%016x", hash)
}

// Format renders t as the textual ("ritobin") form (spec.md §4.3).
// resolver may be nil, in which case every hash prints as hex.
func Format(t *Tree, resolver hashcat.Resolver) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(bin %d\n", t.Version)
	b.WriteString("  (deps")
	for _, d := range t.Dependencies {
		fmt.Fprintf(&b, " %q", d)
	}
	b.WriteString(")\n  (objects\n")
	for objHash, obj := range t.Objects {
		fmt.Fprintf(&b, "    (object %s %s\n", hashToken(objHash, resolver), hashToken(obj.ClassHash, resolver))
		formatProperties(&b, obj.Properties, resolver, 6)
		b.WriteString("    )\n")
	}
	b.WriteString("  )\n)\n")
	return b.String()
}

func formatProperties(b *strings.Builder, props map[uint32]Value, resolver hashcat.Resolver, indent int) {
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(b, "%s(props\n", pad)
	for nameHash, v := range props {
		fmt.Fprintf(b, "%s  (prop %s ", pad, hashToken(nameHash, resolver))
		formatValue(b, v, resolver)
		b.WriteString(")\n")
	}
	fmt.Fprintf(b, "%s)\n", pad)
}

func formatValue(b *strings.Builder, v Value, resolver hashcat.Resolver) {
	switch val := v.(type) {
	case BoolValue:
		fmt.Fprintf(b, "(bool %t)", bool(val))
	case I8Value:
		fmt.Fprintf(b, "(i8 %d)", val)
	case I16Value:
		fmt.Fprintf(b, "(i16 %d)", val)
	case I32Value:
		fmt.Fprintf(b, "(i32 %d)", val)
	case I64Value:
		fmt.Fprintf(b, "(i64 %d)", val)
	case U8Value:
		fmt.Fprintf(b, "(u8 %d)", val)
	case U16Value:
		fmt.Fprintf(b, "(u16 %d)", val)
	case U32Value:
		fmt.Fprintf(b, "(u32 %d)", val)
	case U64Value:
		fmt.Fprintf(b, "(u64 %d)", val)
	case F32Value:
		fmt.Fprintf(b, "(f32 %s)", strconv.FormatFloat(float64(val), 'g', -1, 32))
	case Vec2Value:
		fmt.Fprintf(b, "(vec2 %s)", formatFloats(val[:]))
	case Vec3Value:
		fmt.Fprintf(b, "(vec3 %s)", formatFloats(val[:]))
	case Vec4Value:
		fmt.Fprintf(b, "(vec4 %s)", formatFloats(val[:]))
	case Mtx44Value:
		fmt.Fprintf(b, "(mtx44 %s)", formatFloats(val[:]))
	case ColorValue:
		fmt.Fprintf(b, "(color %d %d %d %d)", val[0], val[1], val[2], val[3])
	case StringValue:
		fmt.Fprintf(b, "(str %q)", string(val))
	case HashValue:
		fmt.Fprintf(b, "(hash %s)", hashToken(uint32(val), resolver))
	case ContainerValue:
		fmt.Fprintf(b, "(container %s", kindNames[val.ElemKind])
		for _, item := range val.Items {
			b.WriteString(" ")
			formatValue(b, item, resolver)
		}
		b.WriteString(")")
	case UnorderedContainerValue:
		fmt.Fprintf(b, "(ucontainer %s", kindNames[val.ElemKind])
		for _, item := range val.Items {
			b.WriteString(" ")
			formatValue(b, item, resolver)
		}
		b.WriteString(")")
	case StructValue:
		fmt.Fprintf(b, "(struct %s ", hashToken(val.ClassHash, resolver))
		formatProperties(b, val.Properties, resolver, 0)
		b.WriteString(")")
	case EmbeddedValue:
		fmt.Fprintf(b, "(embed %s ", hashToken(val.ClassHash, resolver))
		formatProperties(b, val.Properties, resolver, 0)
		b.WriteString(")")
	case OptionalValue:
		fmt.Fprintf(b, "(optional %s ", kindNames[val.ElemKind])
		if val.Value == nil {
			b.WriteString("none")
		} else {
			b.WriteString("(some ")
			formatValue(b, val.Value, resolver)
			b.WriteString(")")
		}
		b.WriteString(")")
	case MapValue:
		fmt.Fprintf(b, "(map %s %s", kindNames[val.KeyKind], kindNames[val.ValKind])
		for _, e := range val.Entries {
			b.WriteString(" (")
			formatValue(b, e.Key, resolver)
			b.WriteString(" ")
			formatValue(b, e.Value, resolver)
			b.WriteString(")")
		}
		b.WriteString(")")
	}
}

func formatFloats(fs []float32) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}

// Parse reads a textual form produced by Format back into a Tree. Bare
// identifier tokens standing in for a hash are rehashed with fnv1a32 so
// that any name the catalog resolved on output reconstructs the same
// numeric hash on input.
func Parse(text string) (*Tree, error) {
	toks := tokenize(text)
	p := &parser{toks: toks}
	t, err := p.parseTree()
	if err != nil {
		return nil, &BinError{Message: err.Error()}
	}
	return t, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	got := p.next()
	if got != tok {
		return errors.Errorf("ritobin: expected %q, got %q at token %d", tok, got, p.pos-1)
	}
	return nil
}

func (p *parser) parseTree() (*Tree, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if err := p.expect("bin"); err != nil {
		return nil, err
	}
	version, err := strconv.ParseUint(p.next(), 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "parsing version")
	}

	t := NewTree(uint32(version))

	if err := p.expect("("); err != nil {
		return nil, err
	}
	if err := p.expect("deps"); err != nil {
		return nil, err
	}
	for p.peek() != ")" {
		s, err := p.parseQuotedString()
		if err != nil {
			return nil, err
		}
		t.Dependencies = append(t.Dependencies, s)
	}
	p.next() // consume ")"

	if err := p.expect("("); err != nil {
		return nil, err
	}
	if err := p.expect("objects"); err != nil {
		return nil, err
	}
	for p.peek() == "(" {
		p.next()
		if err := p.expect("object"); err != nil {
			return nil, err
		}
		objHash, err := p.parseHash()
		if err != nil {
			return nil, err
		}
		classHash, err := p.parseHash()
		if err != nil {
			return nil, err
		}
		props, err := p.parseProps()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		t.Objects[objHash] = Object{ClassHash: classHash, Properties: props}
	}
	p.next() // consume objects' ")"
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseProps() (map[uint32]Value, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if err := p.expect("props"); err != nil {
		return nil, err
	}
	props := make(map[uint32]Value)
	for p.peek() == "(" {
		p.next()
		if err := p.expect("prop"); err != nil {
			return nil, err
		}
		nameHash, err := p.parseHash()
		if err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		props[nameHash] = v
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return props, nil
}

func (p *parser) parseHash() (uint32, error) {
	tok := p.next()
	if strings.HasPrefix(tok, "0x") {
		v, err := strconv.ParseUint(tok[2:], 16, 32)
		return uint32(v), err
	}
	return fnv1a32(tok), nil
}

func (p *parser) parseQuotedString() (string, error) {
	tok := p.next()
	s, err := strconv.Unquote(tok)
	if err != nil {
		return "", errors.Wrapf(err, "parsing quoted string %q", tok)
	}
	return s, nil
}

func (p *parser) parseValue() (Value, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	kindName := p.next()
	switch kindName {
	case "bool":
		v := p.next() == "true"
		return BoolValue(v), p.expect(")")
	case "u64":
		v, err := strconv.ParseUint(p.next(), 10, 64)
		if err != nil {
			return nil, err
		}
		return U64Value(v), p.expect(")")
	case "i8", "i16", "i32", "i64", "u8", "u16", "u32":
		v, err := strconv.ParseInt(p.next(), 10, 64)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return intValueOf(kindName, v), nil
	case "f32":
		v, err := strconv.ParseFloat(p.next(), 32)
		if err != nil {
			return nil, err
		}
		return F32Value(v), p.expect(")")
	case "vec2", "vec3", "vec4", "mtx44":
		n := map[string]int{"vec2": 2, "vec3": 3, "vec4": 4, "mtx44": 16}[kindName]
		fs := make([]float32, n)
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(p.next(), 32)
			if err != nil {
				return nil, err
			}
			fs[i] = float32(v)
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return vecValueOf(kindName, fs), nil
	case "color":
		var c ColorValue
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseUint(p.next(), 10, 8)
			if err != nil {
				return nil, err
			}
			c[i] = uint8(v)
		}
		return c, p.expect(")")
	case "str":
		s, err := p.parseQuotedString()
		if err != nil {
			return nil, err
		}
		return StringValue(s), p.expect(")")
	case "hash":
		h, err := p.parseHash()
		if err != nil {
			return nil, err
		}
		return HashValue(h), p.expect(")")
	case "container", "ucontainer":
		elemKind := namesToKind[p.next()]
		var items []Value
		for p.peek() == "(" {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if kindName == "container" {
			return ContainerValue{ElemKind: elemKind, Items: items}, nil
		}
		return UnorderedContainerValue{ElemKind: elemKind, Items: items}, nil
	case "struct", "embed":
		classHash, err := p.parseHash()
		if err != nil {
			return nil, err
		}
		props, err := p.parseProps()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if kindName == "struct" {
			return StructValue{ClassHash: classHash, Properties: props}, nil
		}
		return EmbeddedValue{ClassHash: classHash, Properties: props}, nil
	case "optional":
		elemKind := namesToKind[p.next()]
		opt := OptionalValue{ElemKind: elemKind}
		if p.peek() == "none" {
			p.next()
		} else {
			if err := p.expect("("); err != nil {
				return nil, err
			}
			if err := p.expect("some"); err != nil {
				return nil, err
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			opt.Value = v
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		return opt, p.expect(")")
	case "map":
		keyKind := namesToKind[p.next()]
		valKind := namesToKind[p.next()]
		var entries []MapEntry
		for p.peek() == "(" {
			p.next()
			k, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return MapValue{KeyKind: keyKind, ValKind: valKind, Entries: entries}, nil
	default:
		return nil, errors.Errorf("ritobin: unknown value kind %q", kindName)
	}
}

func intValueOf(kindName string, v int64) Value {
	switch kindName {
	case "i8":
		return I8Value(v)
	case "i16":
		return I16Value(v)
	case "i32":
		return I32Value(v)
	case "i64":
		return I64Value(v)
	case "u8":
		return U8Value(v)
	case "u16":
		return U16Value(v)
	case "u32":
		return U32Value(v)
	default:
		return U64Value(v)
	}
}

func vecValueOf(kindName string, fs []float32) Value {
	switch kindName {
	case "vec2":
		return Vec2Value{fs[0], fs[1]}
	case "vec3":
		return Vec3Value{fs[0], fs[1], fs[2]}
	case "vec4":
		return Vec4Value{fs[0], fs[1], fs[2], fs[3]}
	default:
		var m Mtx44Value
		copy(m[:], fs)
		return m
	}
}

// tokenize splits ritobin text into parens, whitespace-separated atoms and
// double-quoted string literals (kept intact with escapes for Unquote).
func tokenize(text string) []string {
	var toks []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanRunes)

	var cur strings.Builder
	inString := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	escaped := false
	for sc.Scan() {
		r := sc.Text()
		switch {
		case inString:
			cur.WriteString(r)
			if escaped {
				escaped = false
			} else if r == `\` {
				escaped = true
			} else if r == `"` {
				inString = false
				flush()
			}
		case r == `"`:
			flush()
			inString = true
			cur.WriteString(r)
		case r == "(" || r == ")":
			flush()
			toks = append(toks, r)
		case r == " " || r == "\n" || r == "\t" || r == "\r":
			flush()
		default:
			cur.WriteString(r)
		}
	}
	flush()
	return toks
}
