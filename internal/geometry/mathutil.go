package geometry

import "golang.org/x/exp/constraints"

func Clamp[T constraints.Integer | constraints.Float](x, low, high T) T {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

func Clamp01[T constraints.Float](x T) T { return Clamp(x, 0, 1) }

// Lerp returns a + (b-a)*t with t clamped to [0, 1].
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*Clamp01(t)
}
