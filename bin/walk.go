package bin

// WalkStrings visits every String leaf reachable from t's objects —
// including those nested in containers, unordered containers, structs,
// embeddeds, optionals and map values — and replaces it with whatever
// visit returns when ok is true (spec.md §4.3's "recursive path visitor").
// Map keys are never visited; they participate only in reads. Returns the
// number of leaves actually replaced.
func WalkStrings(t *Tree, visit func(s string) (replacement string, ok bool)) int {
	changed := 0
	for objHash, obj := range t.Objects {
		for propHash, v := range obj.Properties {
			nv, c := walkValue(v, visit)
			if c > 0 {
				obj.Properties[propHash] = nv
				changed += c
			}
		}
		t.Objects[objHash] = obj
	}
	return changed
}

// CollectStringLeaves returns every String leaf value in t, in undefined
// order, for read-only scans (spec.md §4.4 step 3).
func CollectStringLeaves(t *Tree) []string {
	var out []string
	noop := func(s string) (string, bool) {
		out = append(out, s)
		return s, false
	}
	for _, obj := range t.Objects {
		for _, v := range obj.Properties {
			walkValue(v, noop)
		}
	}
	return out
}

func walkValue(v Value, visit func(string) (string, bool)) (Value, int) {
	switch val := v.(type) {
	case StringValue:
		ns, ok := visit(string(val))
		if ok {
			return StringValue(ns), 1
		}
		return val, 0

	case ContainerValue:
		changed := 0
		for i, item := range val.Items {
			nv, c := walkValue(item, visit)
			if c > 0 {
				val.Items[i] = nv
				changed += c
			}
		}
		return val, changed

	case UnorderedContainerValue:
		changed := 0
		for i, item := range val.Items {
			nv, c := walkValue(item, visit)
			if c > 0 {
				val.Items[i] = nv
				changed += c
			}
		}
		return val, changed

	case StructValue:
		changed := 0
		for k, pv := range val.Properties {
			nv, c := walkValue(pv, visit)
			if c > 0 {
				val.Properties[k] = nv
				changed += c
			}
		}
		return val, changed

	case EmbeddedValue:
		changed := 0
		for k, pv := range val.Properties {
			nv, c := walkValue(pv, visit)
			if c > 0 {
				val.Properties[k] = nv
				changed += c
			}
		}
		return val, changed

	case OptionalValue:
		if val.Value == nil {
			return val, 0
		}
		nv, c := walkValue(val.Value, visit)
		if c > 0 {
			val.Value = nv
		}
		return val, c

	case MapValue:
		changed := 0
		for i, e := range val.Entries {
			nv, c := walkValue(e.Value, visit)
			if c > 0 {
				val.Entries[i].Value = nv
				changed += c
			}
		}
		return val, changed

	default:
		return v, 0
	}
}
