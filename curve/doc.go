// Package curve re-encodes densely sampled point sequences as a minimal
// sequence of cubic Bezier segments.
//
// Output formats whose only curved path primitive is the cubic Bezier cannot
// carry conic sections directly. Those primitives are sampled into points
// (see [geom.SampleConic]) and fitted back to cubics with an [Approximator]:
//
//	a := curve.New()
//	for _, p := range samples {
//	    _ = a.AddSourcePoint(p.X, p.Y)
//	}
//	n, err := a.NumCubicPoints() // finalizes; always a multiple of 4
//
// The fit follows the classic least-squares approach: chord-length
// parameterization, endpoint tangents estimated from neighbouring samples,
// control-point magnitudes solved in the least-squares sense, Newton-Raphson
// reparameterization, and subdivision at the sample of maximum deviation until
// every segment lies within [Tolerance] of the samples.
//
// An Approximator is single-use: the first query finalizes it and further
// points are rejected with [ErrInvalidState].
package curve
