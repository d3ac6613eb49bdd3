// Package schema defines the YAML flow catalog: reusable flow templates
// whose steps are declared as data, plus their loading, validation and
// conversion into executable steps.
package schema

// APIVersion is the catalog document version.
const APIVersion = "stepflow/v0"

// Catalog is a set of flow templates.
type Catalog struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion" jsonschema:"enum=stepflow/v0"`
	Templates  []Template `yaml:"templates"  json:"templates,omitempty"`
}

// Template describes the steps of a flow.
type Template struct {
	Name        string    `yaml:"name"                  json:"name" jsonschema:"minLength=1"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepDef `yaml:"steps"                 json:"steps,omitempty"`
}

// StepDef declares one step. Which fields apply depends on Type.
type StepDef struct {
	ID   string `yaml:"id,omitempty" json:"id,omitempty" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_-]*$"`
	Type string `yaml:"type"         json:"type" jsonschema:"enum=title,enum=text,enum=text_input,enum=csv_input,enum=file_input,enum=text_file,enum=csv_file,enum=display,enum=number_input,enum=calculus,enum=output,enum=end"`

	// title, text
	Title    string `yaml:"title,omitempty"    json:"title,omitempty"`
	Subtitle string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Content  string `yaml:"content,omitempty"  json:"content,omitempty"`

	// inputs, number_input, output
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Input       string `yaml:"input,omitempty"       json:"input,omitempty"`
	Path        string `yaml:"path,omitempty"        json:"path,omitempty"`

	// display: id of an earlier step
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	// number_input, calculus. Values are numbers or expressions such as "6 * 7".
	Numeric   string `yaml:"numeric,omitempty"   json:"numeric,omitempty" jsonschema:"enum=int,enum=float"`
	Value     any    `yaml:"value,omitempty"     json:"value,omitempty"`
	Values    []any  `yaml:"values,omitempty"    json:"values,omitempty"`
	Steps     int    `yaml:"steps,omitempty"     json:"steps,omitempty"`
	Operation string `yaml:"operation,omitempty" json:"operation,omitempty" jsonschema:"enum=+,enum=-,enum=*,enum=/,enum=min,enum=max"`

	// output
	FileType string `yaml:"file_type,omitempty" json:"file_type,omitempty"`
}

// Template returns the template named name.
func (c *Catalog) Template(name string) (*Template, bool) {
	for i := range c.Templates {
		if c.Templates[i].Name == name {
			return &c.Templates[i], true
		}
	}
	return nil, false
}

// Names returns the template names in document order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Templates))
	for i, t := range c.Templates {
		names[i] = t.Name
	}
	return names
}
