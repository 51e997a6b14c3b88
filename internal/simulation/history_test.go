package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceRing_EvictsOldestFirst(t *testing.T) {
	r := newPriceRing(3)
	for _, p := range []float64{1, 2, 3, 4, 5} {
		r.push(p)
	}

	assert.Equal(t, 3, r.len())
	assert.Equal(t, []float64{3, 4, 5}, r.all())
	assert.Equal(t, []float64{4, 5}, r.last(2))
	assert.Equal(t, []float64{3, 4, 5}, r.last(10))
	assert.Empty(t, r.last(0))
}

func TestPriceRing_LastReturnsCopy(t *testing.T) {
	r := newPriceRing(4)
	r.push(10)
	r.push(11)

	out := r.last(2)
	out[0] = 99

	assert.Equal(t, []float64{10, 11}, r.all())
}

func TestPriceRing_Reset(t *testing.T) {
	r := newPriceRing(2)
	r.push(1)
	r.push(2)
	r.push(3)
	r.reset()

	assert.Equal(t, 0, r.len())
	r.push(7)
	assert.Equal(t, []float64{7}, r.all())
}

func TestPriceRing_MinimumCapacity(t *testing.T) {
	r := newPriceRing(0)
	r.push(1)
	r.push(2)
	assert.Equal(t, []float64{2}, r.all())
}
