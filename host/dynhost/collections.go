package dynhost

import "iter"

// List is a host sequence collection. It exposes only the iteration
// capability, the way a host list class would.
type List struct {
	items []any
}

// NewList creates a list holding items.
func NewList(items ...any) *List {
	return &List{items: items}
}

// Add appends an item.
func (l *List) Add(v any) {
	l.items = append(l.items, v)
}

// All iterates the items in order.
func (l *List) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, v := range l.items {
			if !yield(v) {
				return
			}
		}
	}
}

// Dict is a host key/value collection with insertion order. Keys may be any
// value; consumers stringify them.
type Dict struct {
	keys []any
	vals map[any]any
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{vals: make(map[any]any)}
}

// Put stores a value. Keys must be comparable.
func (d *Dict) Put(k, v any) {
	if _, ok := d.vals[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.vals[k] = v
}

// Entries iterates the entries in insertion order.
func (d *Dict) Entries() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, k := range d.keys {
			if !yield(k, d.vals[k]) {
				return
			}
		}
	}
}
