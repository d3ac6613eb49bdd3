package step

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CSVInput prints every line of a .csv file.
type CSVInput struct {
	Description string
	Path        string
}

func NewCSVInput(description, path string) *CSVInput {
	return &CSVInput{Description: description, Path: path}
}

func (s *CSVInput) Kind() Kind    { return KindCSVInput }
func (s *CSVInput) Label() string { return s.Description }
func (s *CSVInput) sealed()       {}

func (s *CSVInput) Execute(_ context.Context, env *Env) error {
	if filepath.Ext(s.Path) != ".csv" {
		return fail(KindCSVInput, "invalid file type %q for csv input", s.Path)
	}
	return eachLine(KindCSVInput, s.Path, func(line string) {
		fmt.Fprintf(env.Out(), "CSV Input: %s\n", line)
	})
}

// FileInput prints a description followed by the content of a file. The
// text and csv variants only differ by the header they print; no extension
// check is made.
type FileInput struct {
	Description string
	Path        string
	kind        Kind
}

// NewFileInput returns a generic file input step.
func NewFileInput(description, path string) *FileInput {
	return &FileInput{Description: description, Path: path, kind: KindFileInput}
}

// NewTextFile returns a file input step specialised for text files.
func NewTextFile(description, path string) *FileInput {
	return &FileInput{Description: description, Path: path, kind: KindTextFile}
}

// NewCSVFile returns a file input step specialised for csv files.
func NewCSVFile(description, path string) *FileInput {
	return &FileInput{Description: description, Path: path, kind: KindCSVFile}
}

func (s *FileInput) Kind() Kind    { return s.kind }
func (s *FileInput) Label() string { return s.Description }
func (s *FileInput) sealed()       {}

func (s *FileInput) Execute(ctx context.Context, env *Env) error {
	return s.ReadContent(ctx, env)
}

// ReadContent prints the variant header, the description and the file
// line by line.
func (s *FileInput) ReadContent(_ context.Context, env *Env) error {
	switch s.kind {
	case KindTextFile:
		fmt.Fprintln(env.Out(), "Text File Content:")
	case KindCSVFile:
		fmt.Fprintln(env.Out(), "CSV File Content:")
	}
	fmt.Fprintf(env.Out(), "Description: %s\n", s.Description)
	return eachLine(s.kind, s.Path, func(line string) {
		fmt.Fprintln(env.Out(), line)
	})
}

func eachLine(kind Kind, path string, fn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fail(kind, "unable to open file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fail(kind, "read %q: %w", path, err)
	}
	return nil
}

// NoRef is the Display reference that points at nothing.
const NoRef = -1

// Display re-displays an earlier step of the same flow, addressed by index.
type Display struct {
	Ref int
}

func NewDisplay(ref int) *Display {
	return &Display{Ref: ref}
}

func (s *Display) Kind() Kind { return KindDisplay }
func (s *Display) sealed()    {}

func (s *Display) Label() string {
	if s.Ref < 0 {
		return "display (no reference)"
	}
	return fmt.Sprintf("display step %d", s.Ref+1)
}

var errNoReference = errors.New("no previous step to display")

func (s *Display) Execute(ctx context.Context, env *Env) error {
	if env == nil || env.Steps == nil || s.Ref < 0 {
		return &ExecutionError{Kind: KindDisplay, Err: errNoReference}
	}
	target, ok := env.Steps.StepAt(s.Ref)
	if !ok {
		return &ExecutionError{Kind: KindDisplay, Err: fmt.Errorf("%w: step %d", errNoReference, s.Ref+1)}
	}

	// The target only sees steps before itself, so chains of displays
	// always terminate.
	scoped := *env
	scoped.Steps = prefix{r: env.Steps, limit: s.Ref}

	var err error
	if cr, ok := target.(ContentReader); ok {
		err = cr.ReadContent(ctx, &scoped)
	} else {
		err = target.Execute(ctx, &scoped)
	}
	if err != nil {
		return &ExecutionError{Kind: KindDisplay, Err: err}
	}
	return nil
}

type prefix struct {
	r     Resolver
	limit int
}

func (p prefix) StepAt(index int) (Step, bool) {
	if index < 0 || index >= p.limit {
		return nil, false
	}
	return p.r.StepAt(index)
}
