// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package calldata

import (
	"reflect"
)

// Data is an immutable, append-only bag of call-scoped key/value pairs.
//
// The zero value is an empty bag ready to use. Put never modifies the
// receiver; it returns a new Data which shares every pair already
// present in the receiver. Lookups are most-recent-wins: a key added
// later shadows the same key added earlier, but both pairs remain
// reachable through Range.
//
// Because a Data value is never mutated after construction, any number
// of goroutines may read the same Data concurrently without
// synchronization.
type Data struct {
	n node
}

// Empty is the empty Data. It is equal to the zero value.
var Empty = Data{}

// Of returns a Data holding the given key/value pairs, which are added
// in order. It panics if kv has odd length.
func Of(kv ...interface{}) Data {
	if len(kv)%2 != 0 {
		panic("httppipe/calldata: odd number of arguments")
	}
	var d Data
	for i := 0; i < len(kv); i += 2 {
		d = d.Put(kv[i], kv[i+1])
	}
	return d
}

// Put returns a new Data containing all pairs in d plus the pair
// (key, value).
//
// The key must follow the same rules as the key parameter of
// context.WithValue: it may not be nil and it must be comparable.
// To avoid collisions, keys should be of an unexported type defined by
// the package that owns the value.
func (d Data) Put(key, value interface{}) Data {
	if key == nil {
		panic("httppipe/calldata: nil key")
	}
	if !reflect.TypeOf(key).Comparable() {
		panic("httppipe/calldata: key is not comparable")
	}
	p := pair{key, value}
	if d.n == nil {
		return Data{&node1{p}}
	}
	return Data{d.n.put(p)}
}

// Get returns the most recently added value for key, and whether any
// value was found.
func (d Data) Get(key interface{}) (interface{}, bool) {
	if d.n == nil {
		return nil, false
	}
	return d.n.get(key)
}

// Value returns the most recently added value for key, or nil.
func (d Data) Value(key interface{}) interface{} {
	v, _ := d.Get(key)
	return v
}

// Len returns the number of pairs physically present in d, including
// pairs whose key is shadowed by a later pair.
func (d Data) Len() int {
	if d.n == nil {
		return 0
	}
	return d.n.size()
}

// Range calls fn for every pair in d, newest first, until fn returns
// false. Shadowed pairs are visited too.
func (d Data) Range(fn func(key, value interface{}) bool) {
	if d.n != nil {
		d.n.each(fn)
	}
}

// Lookup is a typed variant of Data.Get. It reports false if no value
// is stored under key or if the most recent value is not a T.
func Lookup[T any](d Data, key interface{}) (T, bool) {
	v, ok := d.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
