package prospect

import "errors"

var (
	ErrInvalidEmail      = errors.New("invalid email")
	ErrMalformedRow      = errors.New("malformed row")
	ErrImportJobNotFound = errors.New("import job not found")
	ErrInvalidTransition = errors.New("invalid import job status transition")
	ErrJobNotProcessing  = errors.New("import job is no longer processing")
)
