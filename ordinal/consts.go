package ordinal

const (
	// Newton-Raphson stops when the max absolute coefficient change
	// drops below ConvergenceTol, or fails after MaxIterations.
	MaxIterations  = 100
	ConvergenceTol = 1e-8

	// a coefficient escaping past this bound means the likelihood is
	// drifting to an unbounded optimum (quasi-separation)
	coefBound = 1e6

	// step halvings allowed per Newton iteration before giving up
	maxHalvings = 30
)
