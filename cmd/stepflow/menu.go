package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/prompt"
	"github.com/ormasoftchile/stepflow/pkg/registry"
	"github.com/ormasoftchile/stepflow/pkg/schema"
)

var menuTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Manage and run flows from an interactive menu (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd.Context())
		},
	}
}

// menu is the interactive create/delete/run/list loop over a registry.
type menu struct {
	app     *app
	reg     *registry.Registry
	catalog *schema.Catalog
	console *prompt.Console
}

func (a *app) runMenu(ctx context.Context) error {
	c, err := a.loadCatalog(a.opts.catalog)
	if err != nil {
		return err
	}
	console, err := a.console(append([]string{"y", "n"}, c.Names()...)...)
	if err != nil {
		return err
	}
	defer console.Close()

	m := &menu{app: a, reg: registry.New(), catalog: c, console: console}
	defer m.reg.Clear()
	return m.loop(ctx)
}

func (m *menu) out() io.Writer  { return m.app.out }
func (m *menu) errw() io.Writer { return m.app.errw }

// loop shows the menu until the user exits or input ends.
func (m *menu) loop(ctx context.Context) error {
	for {
		fmt.Fprintln(m.out(), menuTitle.Render("Choose an option:"))
		fmt.Fprintln(m.out(), "1. Create Flow")
		fmt.Fprintln(m.out(), "2. Delete Flow")
		fmt.Fprintln(m.out(), "3. Run Flow")
		fmt.Fprintln(m.out(), "4. Print Available Flows")
		fmt.Fprintln(m.out(), "5. Exit")

		choice, err := m.console.ReadLine(ctx, "Enter your choice: ")
		if err != nil {
			return m.closed(err)
		}

		switch choice {
		case "1":
			err = m.create(ctx)
		case "2":
			err = m.delete(ctx)
		case "3":
			err = m.run(ctx)
		case "4":
			m.list()
		case "5":
			fmt.Fprintln(m.out(), "Exiting program.")
			return nil
		default:
			fmt.Fprintln(m.out(), "Invalid choice. Try again.")
		}
		if err != nil {
			return m.closed(err)
		}
	}
}

// closed turns end of input into a clean exit.
func (m *menu) closed(err error) error {
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(m.out(), "Exiting program.")
		return nil
	}
	return err
}

func (m *menu) create(ctx context.Context) error {
	name, err := m.console.ReadLine(ctx, "Enter the name for the new flow: ")
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintf(m.errw(), "Error: %v\n", registry.ErrInvalidName)
		return nil
	}
	if _, err := m.reg.Lookup(name); err == nil {
		fmt.Fprintf(m.errw(), "Error: %v\n", fmt.Errorf("%w: %s", registry.ErrFlowExists, name))
		return nil
	}

	tplName, err := m.console.ReadLine(ctx, fmt.Sprintf("Template (%s) [%s]: ",
		strings.Join(m.catalog.Names(), ", "), schema.DefaultTemplateName))
	if err != nil {
		return err
	}
	if tplName == "" {
		tplName = schema.DefaultTemplateName
	}
	tpl, ok := m.catalog.Template(tplName)
	if !ok {
		fmt.Fprintf(m.errw(), "Error: template %q not found\n", tplName)
		return nil
	}

	f, err := m.reg.Create(name)
	if err != nil {
		fmt.Fprintf(m.errw(), "Error: %v\n", err)
		return nil
	}
	if err := tpl.Build(f); err != nil {
		_ = m.reg.Delete(name)
		fmt.Fprintf(m.errw(), "Error: %v\n", err)
		return nil
	}
	fmt.Fprintf(m.out(), "Flow '%s' created with %d steps from template '%s'.\n", f.Name(), f.Len(), tpl.Name)
	return nil
}

func (m *menu) delete(ctx context.Context) error {
	name, err := m.console.ReadLine(ctx, "Enter the name of the flow to delete: ")
	if err != nil {
		return err
	}
	if err := m.reg.Delete(name); err != nil {
		fmt.Fprintf(m.errw(), "Error: %v\n", err)
		return nil
	}
	fmt.Fprintf(m.out(), "Flow '%s' deleted from the system.\n", name)
	return nil
}

func (m *menu) list() {
	fmt.Fprintln(m.out(), "Available Flows:")
	for _, name := range m.reg.List() {
		fmt.Fprintf(m.out(), "- %s\n", name)
	}
}

func (m *menu) run(ctx context.Context) error {
	m.list()
	name, err := m.console.ReadLine(ctx, "Enter the name of the flow to run: ")
	if err != nil {
		return err
	}
	f, err := m.reg.Lookup(name)
	if err != nil {
		fmt.Fprintf(m.errw(), "Error: Flow '%s' not found.\n", name)
		return nil
	}
	return m.runFlow(ctx, f)
}

// runFlow runs f against the menu's console. A run aborted because input
// ended ends the menu as well; other aborts return to the menu.
func (m *menu) runFlow(ctx context.Context, f *flow.Flow) error {
	err := m.app.runFlow(ctx, f, m.console, m.console)
	if err == nil || errors.Is(err, io.EOF) || ctx.Err() != nil {
		return err
	}
	return nil
}
