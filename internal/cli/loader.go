package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/CogniPilot/modelica-ir/internal/dae"
	"github.com/CogniPilot/modelica-ir/internal/loader"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// resolveModelFiles expands path to the model files it names: the file
// itself, or every model file below a directory.
func resolveModelFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &loader.LoadError{Code: loader.ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &loader.LoadError{Code: loader.ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err), Err: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := loader.FindModelFiles(path)
	if err != nil {
		return nil, &loader.LoadError{Code: loader.ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
	}
	if len(files) == 0 {
		return nil, &loader.LoadError{Code: loader.ErrCodeNoFiles, Message: fmt.Sprintf("no model files found in %s", path)}
	}
	return files, nil
}

// loadModel loads one model file.
func loadModel(ctx context.Context, path string) (*dae.Model, error) {
	return loader.Load(ctx, path)
}

// errorCode maps an error to the code reported to the user.
func errorCode(err error) string {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	if structure.IsReferenceError(err) {
		return ErrCodeReference
	}
	if errors.Is(err, structure.ErrSearchLimit) {
		return ErrCodeAnalysis
	}
	return loader.ErrCodeGeneric
}

// errorDetails returns the structured part of err, if any.
func errorDetails(err error) any {
	var le *loader.LoadError
	if errors.As(err, &le) {
		if le.Pos.IsValid() || le.Field != "" {
			return le
		}
		return nil
	}
	var re *structure.ReferenceError
	if errors.As(err, &re) {
		return re
	}
	return nil
}

// reportError writes err through f and returns the matching exit error.
// Errors from loading or analysis are command errors: no result exists.
func reportError(f *OutputFormatter, message string, err error) error {
	if outErr := f.Error(errorCode(err), err.Error(), errorDetails(err)); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, message, err)
}
