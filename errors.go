package navbake

import "fmt"

// Stage names the pipeline stage an error originated from.
type Stage string

const (
	StageInput    Stage = "input"
	StageVoxelize Stage = "voxelize"
	// StageFilter is reserved. The span filters cannot currently fail, so
	// no BuildError carries this stage; it exists so the stage set mirrors
	// the pipeline one to one.
	StageFilter    Stage = "filter"
	StageCompact   Stage = "compact"
	StagePartition Stage = "partition"
	StageContour   Stage = "contour"
	StagePolyMesh  Stage = "polymesh"
	StageDetail    Stage = "detail"
	StagePack      Stage = "pack"
)

// ErrorKind classifies build failures.
type ErrorKind int

const (
	// KindPrecondition means the input mesh cannot be baked at all, for
	// example a GPU-only mesh with no system RAM copy.
	KindPrecondition ErrorKind = iota
	// KindAllocation means an intermediate artifact could not be set up.
	KindAllocation
	// KindStage means a geometry stage failed on valid input.
	KindStage
	// KindPack means nav-data serialization or nav-mesh init failed.
	KindPack
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindAllocation:
		return "allocation"
	case KindStage:
		return "stage"
	case KindPack:
		return "pack"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// BuildError wraps a stage failure with the stage tag and failure kind so
// callers can decide policy instead of the build aborting the process.
type BuildError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("navbake: %s failure at stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(stage Stage, kind ErrorKind, err error) *BuildError {
	return &BuildError{Stage: stage, Kind: kind, Err: err}
}
