// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	_, err := NewLRU(0)
	assert.Error(t, err)

	c, err := NewLRU(2)
	require.NoError(t, err)

	loads := 0
	loader := func(key any) (any, error) {
		loads++
		if key == "nil" {
			return nil, nil
		}
		if key == "err" {
			return nil, errors.New("load failed")
		}
		return key.(string) + "-v", nil
	}

	v, err := c.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.Equal(t, "a-v", v)

	v, err = c.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.Equal(t, "a-v", v)
	assert.Equal(t, 1, loads)

	_, err = c.GetOrLoad("err", loader)
	assert.Error(t, err)

	v, err = c.GetOrLoad("nil", loader)
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, c.Contains("nil"))

	c.Add("b", 1)
	c.Add("c", 2)
	assert.False(t, c.Contains("a"))
}
