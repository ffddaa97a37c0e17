package pipeline

import "fmt"

// Stage names a pipeline step.
type Stage string

const (
	StageChunk    Stage = "chunk"
	StageOCR      Stage = "ocr"
	StageStitch   Stage = "stitch"
	StageExtract  Stage = "extract"
	StageAssemble Stage = "assemble"
)

// StageError reports which step aborted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
