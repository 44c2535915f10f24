package tasks

import "errors"

var errMismatchedCoordCount = errors.New("reducer returned a different number of coordinates than vectors given")

var (
	errNoReducer = errors.New("no reducer configured")
	errNoTagger  = errors.New("no vision tagger configured")
)
