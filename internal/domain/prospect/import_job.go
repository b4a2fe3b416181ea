package prospect

import "time"

type ImportJobStatus string

const (
	StatusCreated    ImportJobStatus = "created"
	StatusProcessing ImportJobStatus = "processing"
	StatusFinished   ImportJobStatus = "finished"
	StatusFailed     ImportJobStatus = "failed"
)

var allowedTransitions = map[ImportJobStatus][]ImportJobStatus{
	StatusCreated:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusFinished, StatusFailed},
}

func CanTransition(from, to ImportJobStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf lists the states that may move to the given state.
func SourcesOf(to ImportJobStatus) []ImportJobStatus {
	var from []ImportJobStatus
	for _, s := range []ImportJobStatus{StatusCreated, StatusProcessing, StatusFinished, StatusFailed} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// ColumnMapping selects which CSV columns feed which prospect fields.
// Optional indices use -1 for "leave the field empty".
type ColumnMapping struct {
	EmailIndex     int
	FirstNameIndex int
	LastNameIndex  int
	HasHeaders     bool
}

type ImportOptions struct {
	Mapping ColumnMapping
	Force   bool
}

type NewImportJob struct {
	OwnerID          int64
	OriginalFileName string
	SavedFileName    string
	TotalRows        int
	Options          ImportOptions
}

type ImportJob struct {
	ID               int64
	OwnerID          int64
	OriginalFileName string
	SavedFileName    string
	TotalRows        int
	DoneRows         int
	Status           ImportJobStatus
	Options          ImportOptions
	ErrorMessage     string
	HeartbeatAt      *time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
	CreatedAt        time.Time
}

// ClampProgress keeps done within [0, total].
func ClampProgress(done, total int) int {
	if done < 0 {
		return 0
	}
	if done > total {
		return total
	}
	return done
}

type BatchResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

type ImportSummary struct {
	Rows     int
	Batches  int
	Inserted int
	Updated  int
	Skipped  int
}
