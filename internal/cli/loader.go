package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/ir"
)

// LoadMode controls how errors are handled during scop loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the scops loaded from a directory.
type LoadResult struct {
	Scops     []*ir.ScopSpec
	CUEValue  cue.Value // the raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// LoadError represents an error that occurred during scop loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScops loads the CUE package in dir and compiles every field of its
// top-level `scop` struct.
//
// A nil result means nothing could be loaded. Otherwise the result holds
// the scops that compiled, and the returned errors describe the others;
// in LoadModeFailFast only the first such error is reported.
func LoadScops(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scop directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scop directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	specs, compileErrs := compiler.CompileScops(value)
	result.Scops = specs

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Scops) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoScops, Message: "no scops found (expected a top-level `scop` struct)"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	prefix := ""
	var scopErr *compiler.ScopError
	if errors.As(err, &scopErr) {
		prefix = "scop." + scopErr.Scop + ": "
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: prefix + compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoScops     = "E008" // No scop struct in the package
	ErrCodeBadFlag     = "E009" // Invalid flag or options file
	ErrCodeStore       = "E010" // Database error

	// Scop description errors
	ErrCodeInvalidParam     = "E120" // Parameter is not an integer
	ErrCodeInvalidStatement = "E121" // Missing or malformed statement
	ErrCodeInvalidDomain    = "E122" // Malformed loop bound
	ErrCodeInvalidSchedule  = "E123" // Malformed schedule
	ErrCodeInvalidAccess    = "E124" // Malformed access
	ErrCodeInvalidIndepRule = "E125" // Malformed independence entry
)

// MapFieldToErrorCode maps a compiler error field such as
// "statement.S1.access.r0.kind" to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasPrefix(field, "params"):
		return ErrCodeInvalidParam
	case strings.HasPrefix(field, "independence"):
		return ErrCodeInvalidIndepRule
	case strings.Contains(field, ".access"):
		return ErrCodeInvalidAccess
	case strings.Contains(field, ".schedule"):
		return ErrCodeInvalidSchedule
	case strings.Contains(field, ".domain"):
		return ErrCodeInvalidDomain
	case strings.HasPrefix(field, "statement"):
		return ErrCodeInvalidStatement
	case field == "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
