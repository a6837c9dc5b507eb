package pipeline

import "fmt"

// Stage names used in failures, logs and metrics.
const (
	StageDiscover = "discover"
	StageParse    = "parse"
	StageMerge    = "merge"
	StageSimplify = "simplify"
	StageEnrich   = "enrich"
	StageExtract  = "extract"
	StageWrite    = "write"
)

// FileError is a failure of one input (or of the merged output) at one
// stage. Err keeps the track error kind reachable through errors.Is.
type FileError struct {
	Path  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
