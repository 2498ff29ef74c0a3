package errors

import "fmt"

// Stage is one discrete phase of a cycle, used to classify external command failures.
type Stage string

// Stages in order of occurrence.
const (
	StageSetup   Stage = "setup"
	StageInstall Stage = "install"
	StageBuild   Stage = "build"
	StageDeploy  Stage = "deploy"
)

// StageFailure is returned when an external command exits non-zero (or cannot be
// started). Output holds the command's combined stdout/stderr verbatim.
type StageFailure struct {
	Stage  Stage
	Output string
	Cause  error
}

func (e *StageFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s stage failed", e.Stage)
}

func (e *StageFailure) Unwrap() error { return e.Cause }

// AsStageFailure returns the first StageFailure in err's chain.
func AsStageFailure(err error) (*StageFailure, bool) {
	var sf *StageFailure
	if As(err, &sf) {
		return sf, true
	}
	return nil, false
}
