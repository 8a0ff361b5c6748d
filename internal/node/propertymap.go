package node

import "sync"

// Producer lazily produces a [Value]. It runs at most once per
// [PropertyMap] binding; its result (value or error) is cached.
type Producer func() (Value, error)

// binding memoizes a single Producer's result within the PropertyMap
// that owns it.
type binding struct {
	mu       sync.Mutex
	resolved bool
	value    Value
	err      error
	produce  Producer
}

func (b *binding) resolve() (Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.resolved {
		b.value, b.err = b.produce()
		b.resolved = true
	}

	return b.value, b.err
}

// PropertyMap is a late-bound, lazy, inheritable mapping from name to
// typed value. A map is created on entry into a node,
// borrows bindings from its parent, and overrides a handful of
// node-specific fields. It is immutable after construction except for
// values produced lazily into their own bindings.
type PropertyMap struct {
	parent *PropertyMap
	own    map[string]*binding
	frozen bool
}

// Root returns a new, parentless [PropertyMap].
func Root() *PropertyMap {
	return &PropertyMap{own: make(map[string]*binding)}
}

// WithOverrides returns a derived [PropertyMap] sharing this one as its
// parent; the given producers shadow any same-named parent bindings.
func (m *PropertyMap) WithOverrides(pairs map[string]Producer) *PropertyMap {
	child := &PropertyMap{parent: m, own: make(map[string]*binding, len(pairs))}
	for name, p := range pairs {
		child.own[name] = &binding{produce: p}
	}

	return child
}

// WithValues is a convenience wrapper around WithOverrides for
// already-materialized values (no laziness needed).
func (m *PropertyMap) WithValues(pairs map[string]Value) *PropertyMap {
	producers := make(map[string]Producer, len(pairs))
	for name, v := range pairs {
		v := v
		producers[name] = func() (Value, error) { return v, nil }
	}

	return m.WithOverrides(producers)
}

// FreezeAsReadOnly marks this map (not its ancestors) as no longer
// accepting structural changes. Producers already bound may still run
// lazily; this only documents intent, since PropertyMap has no public
// mutator besides WithOverrides/WithValues, which always return a new map.
func (m *PropertyMap) FreezeAsReadOnly() {
	m.frozen = true
}

// lookup walks the parent chain child-first and returns the nearest
// binding for name, or nil if undefined anywhere in the chain.
func (m *PropertyMap) lookup(name string) *binding {
	for p := m; p != nil; p = p.parent {
		if b, ok := p.own[name]; ok {
			return b
		}
	}

	return nil
}

// Contains reports whether name is defined anywhere in the chain,
// without forcing evaluation of a lazy producer.
func (m *PropertyMap) Contains(name string) bool {
	switch name {
	case "_keys", "_values", "_map":
		return true
	default:
		return m.lookup(name) != nil
	}
}

// Get returns the named property's value. Missing names are not an
// error: found is false and value is the zero Value.
// A producer's I/O error is propagated verbatim.
func (m *PropertyMap) Get(name string) (value Value, found bool, err error) {
	switch name {
	case "_keys":
		keys := m.Keys()
		parts := make([]Value, len(keys))
		for i, k := range keys {
			parts[i] = StringOf(k)
		}

		return Value{Kind: KindByteArray, Bytes: encodeKeys(keys)}, true, nil

	case "_values":
		vals, err := m.Values()
		if err != nil {
			return Value{}, true, err
		}

		return Value{Kind: KindByteArray, Bytes: encodeValues(vals)}, true, nil

	case "_map":
		snap, err := m.Snapshot()
		if err != nil {
			return Value{}, true, err
		}

		return Value{Kind: KindByteArray, Bytes: encodeMap(snap)}, true, nil
	}

	b := m.lookup(name)
	if b == nil {
		return Value{}, false, nil
	}

	v, err := b.resolve()
	if err != nil {
		return Value{}, true, err
	}

	return v, true, nil
}

// GetString returns the named property rendered as a string, defaulting
// to "" both when undefined and when its producer errors.
func (m *PropertyMap) GetString(name string) string {
	v, found, err := m.Get(name)
	if !found || err != nil {
		return ""
	}

	return v.String()
}

// GetBool evaluates the property-boolean test: a missing property is
// false, never an error.
func (m *PropertyMap) GetBool(name string) bool {
	v, found, err := m.Get(name)
	if !found || err != nil {
		return false
	}

	return v.Truthy()
}

// Keys returns the union of all defined names in the chain, child
// bindings shadowing same-named ancestors (child-first de-duplication).
func (m *PropertyMap) Keys() []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)

	for p := m; p != nil; p = p.parent {
		for name := range p.own {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			keys = append(keys, name)
		}
	}

	return keys
}

// Values returns the resolved value for every key in Keys(), in the same
// order. The first producer error aborts and is returned.
func (m *PropertyMap) Values() ([]Value, error) {
	keys := m.Keys()
	out := make([]Value, 0, len(keys))

	for _, k := range keys {
		v, _, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

// Snapshot materializes every defined property into a plain map (the
// "_map" virtual key). Streams are included by reference, not drained.
func (m *PropertyMap) Snapshot() (map[string]Value, error) {
	keys := m.Keys()
	out := make(map[string]Value, len(keys))

	for _, k := range keys {
		v, _, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}

	return out, nil
}

// encodeKeys/encodeValues/encodeMap give the "_keys"/"_values"/"_map"
// virtual properties a stable textual representation for templates and
// -printf, without pretending they are ordinary scalar values.
func encodeKeys(keys []string) []byte {
	var out []byte
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, k...)
	}

	return out
}

func encodeValues(vals []Value) []byte {
	var out []byte
	for i, v := range vals {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, v.String()...)
	}

	return out
}

func encodeMap(m map[string]Value) []byte {
	out := make([]byte, 0, len(m)*8) //nolint:mnd

	first := true
	for k, v := range m {
		if !first {
			out = append(out, ',')
		}
		first = false
		out = append(out, k...)
		out = append(out, '=')
		out = append(out, v.String()...)
	}

	return out
}
