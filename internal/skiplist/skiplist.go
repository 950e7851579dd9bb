package skiplist

import "math/rand"

// Interface is implemented by values stored in a SkipList. Values must
// define a strict total order: the caller is responsible for ensuring no
// two distinct values compare equal under Less (i.e. neither
// a.Less(b) nor b.Less(a)), since the skip list relies on a hash table
// maintained by the caller to detect membership before calling Insert.
type Interface interface {
	Less(other interface{}) bool
}

// SkipList is an ordered, span-augmented skip list used as the backing
// index for a single ranking view.
type SkipList struct {
	r      *rand.Rand
	header *Element
	update []*Element
	rank   []int
	length int
	level  int
}

// New returns an initialized skip list.
func New() *SkipList {
	return &SkipList{
		r:      rand.New(rand.NewSource(1)),
		header: newElement(SKIPLIST_MAXLEVEL, nil),
		update: make([]*Element, SKIPLIST_MAXLEVEL),
		rank:   make([]int, SKIPLIST_MAXLEVEL),
		length: 0,
		level:  1,
	}
}

// Init re-initializes sl to an empty list.
func (sl *SkipList) Init() *SkipList {
	sl.header = newElement(SKIPLIST_MAXLEVEL, nil)
	sl.update = make([]*Element, SKIPLIST_MAXLEVEL)
	sl.rank = make([]int, SKIPLIST_MAXLEVEL)
	sl.length = 0
	sl.level = 1
	return sl
}

// Front returns the first element of sl, or nil if sl is empty.
func (sl *SkipList) Front() *Element {
	return sl.header.level[0].forward
}

// Len returns the number of elements in sl.
func (sl *SkipList) Len() int {
	return sl.length
}

// Insert inserts v, increments sl.length, and returns the new element
// wrapping v. The caller must ensure v is not already present.
func (sl *SkipList) Insert(v Interface) *Element {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		// Track the rank crossed to reach the insert position.
		if i == sl.level-1 {
			sl.rank[i] = 0
		} else {
			sl.rank[i] = sl.rank[i+1]
		}
		for x.level[i].forward != nil && x.level[i].forward.Value.Less(v) {
			sl.rank[i] += x.level[i].span
			x = x.level[i].forward
		}
		sl.update[i] = x
	}

	level := randomLevel(sl.r)
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			sl.rank[i] = 0
			sl.update[i] = sl.header
			sl.update[i].level[i].span = sl.length
		}
		sl.level = level
	}

	x = newElement(level, v)
	for i := 0; i < level; i++ {
		x.level[i].forward = sl.update[i].level[i].forward
		sl.update[i].level[i].forward = x

		x.level[i].span = sl.update[i].level[i].span - sl.rank[0] + sl.rank[i]
		sl.update[i].level[i].span = sl.rank[0] - sl.rank[i] + 1
	}

	for i := level; i < sl.level; i++ {
		sl.update[i].level[i].span++
	}

	sl.length++

	return x
}

// deleteElement unlinks e from sl using the update path already computed
// by find, and decrements sl.length.
func (sl *SkipList) deleteElement(e *Element, update []*Element) {
	for i := 0; i < sl.level; i++ {
		if update[i].level[i].forward == e {
			update[i].level[i].span += e.level[i].span - 1
			update[i].level[i].forward = e.level[i].forward
		} else {
			update[i].level[i].span -= 1
		}
	}

	for sl.level > 1 && sl.header.level[sl.level-1].forward == nil {
		sl.level--
	}
	sl.length--
}

// Remove removes e from sl if e is still an element of sl and returns
// e.Value, or nil if e was not found.
func (sl *SkipList) Remove(e *Element) interface{} {
	x := sl.find(e.Value)
	if x == e && !e.Value.Less(x.Value) {
		sl.deleteElement(x, sl.update)
		return x.Value
	}

	return nil
}

// Delete deletes the element e such that e.Value == v, and returns
// e.Value, or nil if no such element exists. A missing value is a no-op.
func (sl *SkipList) Delete(v Interface) interface{} {
	x := sl.find(v)
	if x != nil && !v.Less(x.Value) {
		sl.deleteElement(x, sl.update)
		return x.Value
	}

	return nil
}

// Find returns the element e such that e.Value == v, or nil.
func (sl *SkipList) Find(v Interface) *Element {
	x := sl.find(v)
	if x != nil && !v.Less(x.Value) {
		return x
	}

	return nil
}

// find returns the first element e such that e.Value >= v, or nil.
func (sl *SkipList) find(v Interface) *Element {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && x.level[i].forward.Value.Less(v) {
			x = x.level[i].forward
		}
		sl.update[i] = x
	}

	return x.level[0].forward
}

// GetRank returns the 1-based rank of the element e such that
// e.Value == v, or 0 if no such element exists.
func (sl *SkipList) GetRank(v Interface) int {
	x := sl.header
	rank := 0
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && x.level[i].forward.Value.Less(v) {
			rank += x.level[i].span
			x = x.level[i].forward
		}
		if x.level[i].forward != nil && !x.level[i].forward.Value.Less(v) && !v.Less(x.level[i].forward.Value) {
			rank += x.level[i].span
			return rank
		}
	}

	return 0
}

// GetElementByRank returns the element at the given 1-based rank, or nil
// if rank is out of bounds.
func (sl *SkipList) GetElementByRank(rank int) *Element {
	x := sl.header
	traversed := 0
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && traversed+x.level[i].span <= rank {
			traversed += x.level[i].span
			x = x.level[i].forward
		}
		if traversed == rank {
			return x
		}
	}

	return nil
}
