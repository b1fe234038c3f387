package boardsync

import (
	mathrand "math/rand"
	"sort"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestFirstKey(t *testing.T) {
	assert.Equal(t, "a0", FirstKey())

	key, err := KeyBetween("", "")
	assert.Equal(t, nil, err)
	assert.Equal(t, "a0", key)
}

func TestKeyBetweenOrder(t *testing.T) {
	cases := [][2]string{
		{"a0", ""},
		{"", "a0"},
		{"a0", "a1"},
		{"a0", "a0V"},
		{"a1", "a2"},
		{"Zz", "a0"},
		{"a0", "b00"},
	}
	for _, c := range cases {
		key, err := KeyBetween(c[0], c[1])
		assert.Equal(t, nil, err)
		if c[0] != "" {
			assert.Equal(t, true, c[0] < key)
		}
		if c[1] != "" {
			assert.Equal(t, true, key < c[1])
		}
	}
}

func TestKeyBetweenInvalid(t *testing.T) {
	_, err := KeyBetween("a1", "a0")
	assert.NotEqual(t, nil, err)

	_, err = KeyBetween("a0", "a0")
	assert.NotEqual(t, nil, err)
}

// repeatedly split random gaps and check the key space stays densely ordered
func TestKeyBetweenDense(t *testing.T) {
	keys := []string{FirstKey()}
	for i := 0; i < 1000; i += 1 {
		j := mathrand.Intn(len(keys) + 1)
		a := ""
		if 0 < j {
			a = keys[j-1]
		}
		b := ""
		if j < len(keys) {
			b = keys[j]
		}
		key, err := KeyBetween(a, b)
		assert.Equal(t, nil, err)
		if a != "" {
			assert.Equal(t, true, a < key)
		}
		if b != "" {
			assert.Equal(t, true, key < b)
		}
		keys = append(keys[:j], append([]string{key}, keys[j:]...)...)
	}
	assert.Equal(t, true, sort.StringsAreSorted(keys))
}

func TestKeyBetweenAppend(t *testing.T) {
	// appending at the end walks the integer part upward
	key := FirstKey()
	for i := 0; i < 200; i += 1 {
		next, err := KeyBetween(key, "")
		assert.Equal(t, nil, err)
		assert.Equal(t, true, key < next)
		key = next
	}
}
