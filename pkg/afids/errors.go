package afids

import (
	"errors"
	"fmt"
)

// ErrEmptyCandidateSet is returned when a landmark's pooled candidate set
// is empty, e.g. because no subjects were given. A degenerate coordinate is
// never fabricated.
var ErrEmptyCandidateSet = errors.New("no candidate voxels to score")

// InvalidAFIDError indicates a landmark index outside [1, 32].
type InvalidAFIDError struct {
	Index int
}

func (e *InvalidAFIDError) Error() string {
	return fmt.Sprintf("landmark index %d outside [1, %d]", e.Index, NumAFIDs)
}

// MismatchedInputLengthError indicates that the subject image list and the
// seed file list differ in length and cannot be paired.
type MismatchedInputLengthError struct {
	Subjects int
	Seeds    int
}

func (e *MismatchedInputLengthError) Error() string {
	return fmt.Sprintf("got %d subject images but %d seed files; lists must pair one-to-one",
		e.Subjects, e.Seeds)
}

// ModelNotFoundError indicates that the expected trained-model file for a
// landmark is absent from the model directory.
//
// The underlying error can be accessed via errors.Unwrap.
type ModelNotFoundError struct {
	AFID         int
	SamplingRate int
	cause        error
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("no trained model for landmark %02d at sampling rate %d: %v",
		e.AFID, e.SamplingRate, e.cause)
}

func (e *ModelNotFoundError) Unwrap() error { return e.cause }
