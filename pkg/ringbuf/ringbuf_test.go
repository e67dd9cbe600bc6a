package ringbuf_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yvesf/mercury-gw/pkg/ringbuf"
)

func TestRingbuf(t *testing.T) {
	t.Run(`empty`, func(t *testing.T) {
		r := ringbuf.NewRingbuf[float64](0)
		require.True(t, math.IsNaN(ringbuf.Mean(r)))
		r.Add(1)
		require.True(t, math.IsNaN(ringbuf.Mean(r)))
		require.Zero(t, r.Len())
	})
	t.Run(`size -1 invalid`, func(t *testing.T) {
		r := ringbuf.NewRingbuf[float64](-1)
		r.Add(1)
		require.True(t, math.IsNaN(ringbuf.Mean(r)))
	})
	t.Run(`size 3 wraps`, func(t *testing.T) {
		r := ringbuf.NewRingbuf[int](3)
		r.Add(1)
		r.Add(2)
		require.Equal(t, []int{1, 2}, r.Values())
		require.InEpsilon(t, 1.5, ringbuf.Mean(r), 0.0001)
		r.Add(3)
		r.Add(4)
		require.Equal(t, 3, r.Len())
		require.Equal(t, []int{2, 3, 4}, r.Values())
		require.InEpsilon(t, 3.0, ringbuf.Mean(r), 0.0001)
		r.Add(0)
		r.Add(0)
		require.Equal(t, []int{4, 0, 0}, r.Values())
	})
	t.Run(`link quality`, func(t *testing.T) {
		r := ringbuf.NewRingbuf[float64](4)
		for _, v := range []float64{1, 1, 0, 1, 1} {
			r.Add(v)
		}
		require.InEpsilon(t, 0.75, ringbuf.Mean(r), 0.0001)
	})
}
