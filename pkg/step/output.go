package step

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output writes its description and content to a file whose base name is
// asked from the user at execution time.
type Output struct {
	FileType    string
	Description string
	Content     string
}

func NewOutput(fileType, description, content string) *Output {
	return &Output{FileType: fileType, Description: description, Content: content}
}

func (s *Output) Kind() Kind    { return KindOutput }
func (s *Output) Label() string { return s.Description }
func (s *Output) sealed()       {}

func (s *Output) Execute(ctx context.Context, env *Env) error {
	if env == nil || env.Input == nil {
		return fail(KindOutput, "no input available to ask for the file name")
	}
	name, err := env.Input.ReadLine(ctx, "Enter the output file name (without extension): ")
	if err != nil {
		return fail(KindOutput, "read file name: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fail(KindOutput, "empty output file name")
	}

	path := filepath.Join(env.Dir, name+"."+s.FileType)
	body := fmt.Sprintf("Description: %s\nContent: %s\n", s.Description, s.Content)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fail(KindOutput, "unable to write output file %q: %w", path, err)
	}
	fmt.Fprintf(env.Out(), "Output written to file: %s\n", path)
	return nil
}
