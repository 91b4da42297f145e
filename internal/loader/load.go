package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/dae"
)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".cue", ".yaml", ".yml", ".json", ".hcl"}

// Decode parses data according to the extension of filename. A missing
// model name defaults to the file's base name.
func Decode(data []byte, filename string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		doc, err = DecodeCUE(data, filename)
	case ".yaml", ".yml", ".json":
		doc, err = DecodeYAML(data, filename)
	case ".hcl":
		doc, err = DecodeHCL(data, filename)
	default:
		return nil, &LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported model format %q (want one of %s)", ext, strings.Join(Extensions, ", ")),
		}
	}
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return doc, nil
}

// Load reads the model file at path and builds the model.
func Load(ctx context.Context, path string) (*dae.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading model", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model file not found: %s", path), Err: err}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}
	doc, err := Decode(data, path)
	if err != nil {
		return nil, err
	}
	m, err := doc.Build()
	if err != nil {
		return nil, err
	}
	logger.Debug("Model loaded", "model", m.Name(), "variables", len(m.Variables()), "residuals", len(m.Residuals()))
	return m, nil
}

// FindModelFiles walks dir and returns every file with a supported
// extension, in lexical order.
func FindModelFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
