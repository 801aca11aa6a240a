package ethereum

const (
	// TableWindows is the number of 8-bit windows of a 256-bit scalar.
	TableWindows = 32
	// TableWindowPoints holds the non-zero multiples per window.
	TableWindowPoints = 255
	// TablePoints is the number of points in the precompute table.
	TablePoints = TableWindows * TableWindowPoints
	// PointSize is one affine point: X then Y, each as eight little-endian 32-bit limbs.
	PointSize = 64
	// TableSize is the precompute table size in bytes.
	TableSize = TablePoints * PointSize
)
