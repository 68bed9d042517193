package common

import "errors"

var (
	// input errors
	ErrorUnknownLevel      = errors.New("categorical value not in declared level order")
	ErrorOrdering          = errors.New("no level order supplied and none inferable from the data")
	ErrorColumn            = errors.New("column missing or of the wrong kind")
	ErrorWeight            = errors.New("weights must be positive and match the data length")
	ErrorInvalidPercentile = errors.New("percentile must be strictly between 0 and 100")

	// model errors
	ErrorInsufficientLevels = errors.New("need at least 2 distinct observed category levels")
	ErrorInsufficientData   = errors.New("fewer observations than estimable parameters")
	ErrorSeparation         = errors.New("perfect separation at a cutpoint, likelihood unbounded")
	ErrorConvergence        = errors.New("maximum likelihood fit did not converge")
)
