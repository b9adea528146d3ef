package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoFalseNegatives(t *testing.T) {
	f := New(10_000, 0.01)
	ids := make([]string, 0, 5000)
	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("uuid-%d", i)
		ids = append(ids, id)
		f.Add(id)
	}
	for _, id := range ids {
		assert.True(t, f.MayContain(id))
	}
}

func TestEmpiricalFPRBounded(t *testing.T) {
	n := uint64(5000)
	p := 0.01
	f := New(n, p)
	for i := uint64(0); i < n; i++ {
		f.Add(fmt.Sprintf("seen-%d", i))
	}
	falsePositives := 0
	trials := 20000
	for i := 0; i < trials; i++ {
		id := fmt.Sprintf("unseen-%d", i)
		if f.MayContain(id) {
			falsePositives++
		}
	}
	empirical := float64(falsePositives) / float64(trials)
	assert.LessOrEqual(t, empirical, 3*p)
}

func TestMergeIsUnion(t *testing.T) {
	f1 := New(1000, 0.01)
	f2 := New(1000, 0.01)
	f1.Add("a")
	f2.Add("b")

	merged := New(1000, 0.01)
	require.NoError(t, merged.Merge(f1))
	require.NoError(t, merged.Merge(f2))

	assert.True(t, merged.MayContain("a"))
	assert.True(t, merged.MayContain("b"))
}

func TestMergeRequiresSameParams(t *testing.T) {
	f1 := New(1000, 0.01)
	f2 := New(2000, 0.01)
	assert.ErrorIs(t, f1.Merge(f2), ErrIncompatible)
}

func TestSerializeRoundTrip(t *testing.T) {
	f := New(1000, 0.01)
	f.Add("x")
	f.Add("y")

	buf := f.Serialize()
	out, err := Deserialize(buf)
	require.NoError(t, err)

	assert.Equal(t, f.m, out.m)
	assert.Equal(t, f.k, out.k)
	assert.Equal(t, f.count, out.count)
	assert.True(t, out.MayContain("x"))
	assert.True(t, out.MayContain("y"))
	assert.Equal(t, f.EstimatedFPR(), out.EstimatedFPR())
}
