package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies where a deployment failed.
type Kind string

const (
	KindValidation Kind = "validation"
	KindProvision  Kind = "provision"
	KindPackaging  Kind = "packaging"
	KindUpload     Kind = "upload"
	KindBuild      Kind = "build"
	KindDeploy     Kind = "deploy"
	// KindAborted means the record disappeared mid-pipeline, usually because it was deleted.
	KindAborted Kind = "aborted"
)

type Error struct {
	Kind         Kind
	DeploymentID string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err did not come from the orchestrator.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Err: errors.New(msg)}
}
