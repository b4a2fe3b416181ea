package prospect

import "errors"

var (
	ErrUploadRejected       = errors.New("upload rejected: no data rows")
	ErrInvalidColumnMapping = errors.New("invalid column mapping")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("import job not found")
	ErrValidation           = errors.New("prospect validation failed")
	ErrPersistence          = errors.New("prospect batch persistence failed")
	ErrStageUpload          = errors.New("failed to stage upload")
	ErrCreateImportJob      = errors.New("failed to create import job")
	ErrGetProgress          = errors.New("failed to get import progress")
	ErrListProspects        = errors.New("failed to list prospects")
)
