// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package calldata

// Call data usually carries zero to five pairs and a fresh bag is built
// for every call, so pairs live inline in small fixed-size nodes. A
// put on a full node4 starts a chain: each chain node references the
// older node it extends and owns a fixed tail holding up to four of
// the newest pairs. Nodes never reference newer nodes and are never
// mutated.

const maxInline = 4

type pair struct {
	key, value interface{}
}

type node interface {
	get(key interface{}) (interface{}, bool)
	put(p pair) node
	size() int
	each(fn func(key, value interface{}) bool) bool
}

type node1 [1]pair
type node2 [2]pair
type node3 [3]pair
type node4 [4]pair

func (n *node1) put(p pair) node { return &node2{n[0], p} }
func (n *node2) put(p pair) node { return &node3{n[0], n[1], p} }
func (n *node3) put(p pair) node { return &node4{n[0], n[1], n[2], p} }
func (n *node4) put(p pair) node { return &chain{prev: n, tail: &node1{p}, n: maxInline + 1} }

func (n *node1) size() int { return 1 }
func (n *node2) size() int { return 2 }
func (n *node3) size() int { return 3 }
func (n *node4) size() int { return 4 }

func (n *node1) get(key interface{}) (interface{}, bool) { return get(n[:], key) }
func (n *node2) get(key interface{}) (interface{}, bool) { return get(n[:], key) }
func (n *node3) get(key interface{}) (interface{}, bool) { return get(n[:], key) }
func (n *node4) get(key interface{}) (interface{}, bool) { return get(n[:], key) }

func (n *node1) each(fn func(key, value interface{}) bool) bool { return each(n[:], fn) }
func (n *node2) each(fn func(key, value interface{}) bool) bool { return each(n[:], fn) }
func (n *node3) each(fn func(key, value interface{}) bool) bool { return each(n[:], fn) }
func (n *node4) each(fn func(key, value interface{}) bool) bool { return each(n[:], fn) }

func get(pairs []pair, key interface{}) (interface{}, bool) {
	for i := len(pairs) - 1; i >= 0; i-- {
		if pairs[i].key == key {
			return pairs[i].value, true
		}
	}
	return nil, false
}

func each(pairs []pair, fn func(key, value interface{}) bool) bool {
	for i := len(pairs) - 1; i >= 0; i-- {
		if !fn(pairs[i].key, pairs[i].value) {
			return false
		}
	}
	return true
}

// chain is the overflow node.
type chain struct {
	prev node
	tail node
	n    int
}

func (c *chain) put(p pair) node {
	if c.tail.size() < maxInline {
		return &chain{prev: c.prev, tail: c.tail.put(p), n: c.n + 1}
	}
	return &chain{prev: c, tail: &node1{p}, n: c.n + 1}
}

func (c *chain) size() int { return c.n }

func (c *chain) get(key interface{}) (interface{}, bool) {
	if v, ok := c.tail.get(key); ok {
		return v, true
	}
	return c.prev.get(key)
}

func (c *chain) each(fn func(key, value interface{}) bool) bool {
	return c.tail.each(fn) && c.prev.each(fn)
}
