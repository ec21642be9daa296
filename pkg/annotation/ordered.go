package annotation

// orderedMap is a map that iterates in first-insertion order.
// Overwriting an existing key keeps its original position.
type orderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{values: make(map[K]V)}
}

func (m *orderedMap[K, V]) get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// set stores value under key and returns the value it replaced, if any.
func (m *orderedMap[K, V]) set(key K, value V) (V, bool) {
	prev, existed := m.values[key]
	if !existed {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return prev, existed
}

func (m *orderedMap[K, V]) len() int {
	return len(m.keys)
}

func (m *orderedMap[K, V]) each(fn func(key K, value V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}
