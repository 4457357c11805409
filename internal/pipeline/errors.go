package pipeline

import (
	"context"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/roboco-io/chaptermd/internal/parser"
)

// Stage names reported by fatal errors.
const (
	StageInput    = "input"
	StageOutput   = "output"
	StageAssets   = "assets"
	StageRender   = "render"
	StageFinalize = "finalize"
)

// Error codes attached to categorized errors.
const (
	CodeEmptyDocument = "EMPTY_DOCUMENT"
	CodeUnsupported   = "UNSUPPORTED_INPUT"
	CodeParseFailed   = "PARSE_FAILED"
	CodeInvalidOption = "INVALID_OPTION"
	CodeOutputFailed  = "OUTPUT_FAILED"
	CodeAssetsFailed  = "ASSETS_FAILED"
	CodeRenderFailed  = "RENDER_FAILED"
	CodeCanceled      = "RUN_CANCELED"
	CodeFinalize      = "FINALIZE_FAILED"
)

// ErrEmptyDocument is returned for a document without content blocks.
var ErrEmptyDocument = errors.New("document has no content")

// StageError reports the stage at which a run stopped.
type StageError struct {
	Stage string
	Code  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage, code string, err error) *StageError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = CodeCanceled
	}
	return &StageError{Stage: stage, Code: code, Err: err}
}

// InputError reports a failure to read the source document. Unsupported,
// encrypted and legacy inputs get CodeUnsupported.
func InputError(err error) *StageError {
	code := CodeParseFailed
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, parser.ErrEncrypted),
		errors.Is(err, parser.ErrLegacyWord):
		code = CodeUnsupported
	}
	return stageError(StageInput, code, err)
}

// Categorize wraps a run error with a go-errors category and text code so
// transports can map it to a status. Input and option problems are
// validation errors, everything else is a command failure.
func Categorize(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	var se *StageError
	if !errors.As(err, &se) {
		return goerrors.Wrap(err, goerrors.CategoryCommand, "conversion failed")
	}
	switch se.Code {
	case CodeEmptyDocument, CodeInvalidOption, CodeUnsupported, CodeParseFailed:
		return goerrors.Wrap(err, goerrors.CategoryValidation, "conversion input rejected").
			WithTextCode(se.Code)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "conversion failed at "+se.Stage).
			WithTextCode(se.Code)
	}
}
