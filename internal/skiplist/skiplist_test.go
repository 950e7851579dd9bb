package skiplist

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

type Int int

func (i Int) Less(other interface{}) bool {
	return i < other.(Int)
}

func TestSkipListOrderedTraversal(t *testing.T) {
	sl := New()
	assert.Equal(t, 0, sl.Len())
	assert.Nil(t, sl.Front())

	sl.Insert(Int(3))
	sl.Insert(Int(1))
	sl.Insert(Int(2))
	sl.Insert(Int(-999))
	sl.Insert(Int(888))

	expect := []Int{Int(-999), Int(1), Int(2), Int(3), Int(888)}
	got := make([]Int, 0, len(expect))
	for e := sl.Front(); e != nil; e = e.Next() {
		got = append(got, e.Value.(Int))
	}
	assert.Equal(t, expect, got)
}

func TestSkipListFindRemoveDelete(t *testing.T) {
	sl := New()
	for _, v := range []Int{5, 1, 3, 9, 7} {
		sl.Insert(v)
	}

	e := sl.Find(Int(3))
	assert.NotNil(t, e)
	assert.Equal(t, Int(3), e.Value.(Int))

	sl.Remove(e)
	assert.Nil(t, sl.Find(Int(3)))
	assert.Equal(t, 4, sl.Len())

	assert.Nil(t, sl.Delete(Int(123)))
	assert.NotNil(t, sl.Delete(Int(9)))
	assert.Equal(t, 3, sl.Len())
}

func TestSkipListRank(t *testing.T) {
	sl := New()
	for i := 1; i <= 10; i++ {
		sl.Insert(Int(i))
	}

	for i := 1; i <= 10; i++ {
		assert.Equal(t, i, sl.GetRank(Int(i)))
		assert.Equal(t, Int(i), sl.GetElementByRank(i).Value)
	}

	assert.Equal(t, 0, sl.GetRank(Int(0)))
	assert.Equal(t, 0, sl.GetRank(Int(11)))
	assert.Nil(t, sl.GetElementByRank(11))
}

func TestSkipListRankLargeRandom(t *testing.T) {
	sl := New()
	seen := make(map[int]bool)
	values := make([]int, 0, 5000)

	for len(values) < 5000 {
		x := rand.Intn(1_000_000)
		if seen[x] {
			continue
		}
		seen[x] = true
		sl.Insert(Int(x))
		values = append(values, x)
	}
	sort.Ints(values)

	for i, v := range values {
		assert.Equal(t, Int(v), sl.GetElementByRank(i+1).Value)
		assert.Equal(t, i+1, sl.GetRank(Int(v)))
	}
}
