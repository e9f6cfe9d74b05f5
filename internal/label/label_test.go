package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"only separators", " ,, \t\n", []string{}},
		{"commas", "Pet,Cute", []string{"pet", "cute"}},
		{"comma and space", "Pet, Cute", []string{"pet", "cute"}},
		{"mixed runs", "  Dog ,\tBEACH,,sunset  ", []string{"dog", "beach", "sunset"}},
		{"duplicates kept", "cat Cat CAT", []string{"cat", "cat", "cat"}},
		{"query text", "find my dog pictures", []string{"find", "my", "dog", "pictures"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestMerge(t *testing.T) {
	a := []string{"cat", "animal", "pet"}
	b := []string{"Pet", " cute ", ""}

	got := Merge(a, b)
	assert.Equal(t, []string{"animal", "cat", "cute", "pet"}, got)

	t.Run("commutative", func(t *testing.T) {
		assert.Equal(t, Merge(a, b), Merge(b, a))
	})
	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, got, Merge(got, nil))
	})
	t.Run("both empty", func(t *testing.T) {
		out := Merge(nil, []string{})
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
	t.Run("sorted without duplicates", func(t *testing.T) {
		out := Merge([]string{"b", "a", "b"}, []string{"c", "a"})
		assert.Equal(t, []string{"a", "b", "c"}, out)
	})
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"cat", "sunset"}, Dedup([]string{"cat", "sunset", "cat"}))
	assert.Empty(t, Dedup(nil))
}
