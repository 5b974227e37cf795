// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vechain/epochdb/stackedmap"
)

func M(a ...any) []any {
	return a
}

func TestStackedMap(t *testing.T) {
	assert := assert.New(t)
	src := make(map[string]string)
	src["foo"] = "bar"

	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, r := src[key]
		return v, r, nil
	})

	tests := []struct {
		f         func()
		depth     int
		putKey    string
		putValue  string
		getKey    string
		getReturn []any
	}{
		{func() {}, 1, "", "", "foo", []any{"bar", true, nil}},
		{func() { sm.Push() }, 2, "foo", "baz", "foo", []any{"baz", true, nil}},
		{func() {}, 2, "foo", "baz1", "foo", []any{"baz1", true, nil}},
		{func() { sm.Push() }, 3, "foo", "qux", "foo", []any{"qux", true, nil}},
		{func() { sm.Pop() }, 2, "", "", "foo", []any{"baz1", true, nil}},
		{func() { sm.Pop() }, 1, "", "", "foo", []any{"bar", true, nil}},

		{func() { sm.Push(); sm.Push() }, 3, "", "", "", nil},
		{func() { sm.PopTo(0) }, 0, "", "", "", nil},
	}

	for _, test := range tests {
		test.f()
		assert.Equal(test.depth, sm.Depth())
		if test.putKey != "" {
			sm.Put(test.putKey, test.putValue)
		}
		if test.getKey != "" {
			assert.Equal(test.getReturn, M(sm.Get(test.getKey)))
		}
	}
}

func TestStackedMapJournal(t *testing.T) {
	sm := stackedmap.New(func(string) (int, bool, error) {
		return 0, false, nil
	})

	sm.Put("a", 1)
	sm.Put("a", 2)
	rev := sm.Push()
	sm.Put("b", 3)
	sm.Put("a", 4)

	collect := func() (keys []string, vals []int) {
		sm.Journal(func(k string, v int) bool {
			keys = append(keys, k)
			vals = append(vals, v)
			return true
		})
		return
	}

	keys, vals := collect()
	assert.Equal(t, []string{"a", "a", "b", "a"}, keys)
	assert.Equal(t, []int{1, 2, 3, 4}, vals)

	v, ok, err := sm.Get("a")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	sm.PopTo(rev)
	keys, vals = collect()
	assert.Equal(t, []string{"a", "a"}, keys)
	assert.Equal(t, []int{1, 2}, vals)

	v, ok, _ = sm.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok, _ = sm.Get("b")
	assert.False(t, ok)

	var n int
	sm.Journal(func(string, int) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestStackedMapSourceError(t *testing.T) {
	srcErr := errors.New("source failure")
	sm := stackedmap.New(func(string) ([]byte, bool, error) {
		return nil, false, srcErr
	})

	_, _, err := sm.Get("x")
	assert.Equal(t, srcErr, err)

	sm.Put("x", []byte("v"))
	v, ok, err := sm.Get("x")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
