package step

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Title prints a title and subtitle.
type Title struct {
	Title    string
	Subtitle string
}

func NewTitle(title, subtitle string) *Title {
	return &Title{Title: title, Subtitle: subtitle}
}

func (s *Title) Kind() Kind    { return KindTitle }
func (s *Title) Label() string { return s.Title }
func (s *Title) sealed()       {}

func (s *Title) Execute(_ context.Context, env *Env) error {
	fmt.Fprintf(env.Out(), "Title: %s\n", s.Title)
	fmt.Fprintf(env.Out(), "Subtitle: %s\n", s.Subtitle)
	return nil
}

// Text prints a titled block of text.
type Text struct {
	Title   string
	Content string
}

func NewText(title, content string) *Text {
	return &Text{Title: title, Content: content}
}

func (s *Text) Kind() Kind    { return KindText }
func (s *Text) Label() string { return s.Title }
func (s *Text) sealed()       {}

func (s *Text) Execute(_ context.Context, env *Env) error {
	fmt.Fprintf(env.Out(), "Title: %s\n", s.Title)
	fmt.Fprintf(env.Out(), "Content: %s\n", s.Content)
	return nil
}

// TextInput echoes a text value. When the value names a .txt file the
// file's content is printed instead.
type TextInput struct {
	Description string
	Input       string
}

func NewTextInput(description, input string) *TextInput {
	return &TextInput{Description: description, Input: input}
}

func (s *TextInput) Kind() Kind    { return KindTextInput }
func (s *TextInput) Label() string { return s.Description }
func (s *TextInput) sealed()       {}

func (s *TextInput) Execute(_ context.Context, env *Env) error {
	if filepath.Ext(s.Input) != ".txt" {
		fmt.Fprintf(env.Out(), "Text Input: %s\n", s.Input)
		return nil
	}
	data, err := os.ReadFile(s.Input)
	if err != nil {
		return fail(KindTextInput, "unable to open text file %q: %w", s.Input, err)
	}
	fmt.Fprintf(env.Out(), "Text Input (from file): %s\n", data)
	return nil
}

// End marks the end of a flow and does nothing.
type End struct{}

func NewEnd() *End { return &End{} }

func (s *End) Kind() Kind    { return KindEnd }
func (s *End) Label() string { return "end" }
func (s *End) sealed()       {}

func (s *End) Execute(context.Context, *Env) error {
	return nil
}
