package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. "templates[0].steps[3].ref"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether errs contains anything more severe than a
// warning.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// ValidateFile runs the full validation pipeline on a catalog file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (step rules, references, numeric expressions)
func ValidateFile(path string) (*Catalog, []*ValidationError) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return c, Validate(c)
}

// Validate runs the semantic and domain phases on a decoded catalog.
func Validate(c *Catalog) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(c)...)
	errs = append(errs, ValidateDomain(c)...)
	return errs
}

// validateSemantic validates the catalog against the generated JSON Schema.
func validateSemantic(c *Catalog) []*ValidationError {
	semantic := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return semantic("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semantic("generate schema: %v", err)
	}

	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return semantic("unmarshal schema: %v", err)
	}
	compiler := sjsonschema.NewCompiler()
	if err := compiler.AddResource("catalog-v0.json", schemaDoc); err != nil {
		return semantic("add schema resource: %v", err)
	}
	sch, err := compiler.Compile("catalog-v0.json")
	if err != nil {
		return semantic("compile schema: %v", err)
	}

	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return semantic("unmarshal document: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semantic("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain checks the rules JSON Schema cannot express.
func ValidateDomain(c *Catalog) []*ValidationError {
	var errs []*ValidationError
	domain := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		})
	}

	if c.APIVersion != APIVersion {
		domain("apiVersion", "unrecognized apiVersion %q, expected %q", c.APIVersion, APIVersion)
	}

	names := make(map[string]int)
	for ti, t := range c.Templates {
		tpath := fmt.Sprintf("templates[%d]", ti)
		if strings.TrimSpace(t.Name) == "" {
			domain(tpath+".name", "template name is required")
		} else if prev, ok := names[t.Name]; ok {
			domain(tpath+".name", "duplicate template name %q (first at templates[%d])", t.Name, prev)
		} else {
			names[t.Name] = ti
		}

		if len(t.Steps) == 0 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     tpath + ".steps",
				Message:  fmt.Sprintf("template %q has no steps", t.Name),
				Severity: "warning",
			})
		}

		ids := make(map[string]int)
		for si, sd := range t.Steps {
			spath := fmt.Sprintf("%s.steps[%d]", tpath, si)
			if sd.ID != "" {
				if prev, ok := ids[sd.ID]; ok {
					domain(spath+".id", "duplicate step id %q (first at steps[%d])", sd.ID, prev)
				} else {
					ids[sd.ID] = si
				}
			}
			for _, msg := range checkStep(sd, ids, si) {
				domain(spath, "%s", msg)
			}
		}
	}
	return errs
}

// checkStep returns the problems of one step definition. ids holds the ids
// of the steps declared so far.
func checkStep(sd StepDef, ids map[string]int, index int) []string {
	var problems []string
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s step requires %q", sd.Type, field))
		}
	}

	switch step.Kind(sd.Type) {
	case step.KindTitle, step.KindText:
		require("title", sd.Title)
	case step.KindTextInput:
		require("input", sd.Input)
	case step.KindCSVInput, step.KindFileInput, step.KindTextFile, step.KindCSVFile:
		require("path", sd.Path)
	case step.KindDisplay:
		if sd.Ref == "" {
			problems = append(problems, `display step requires "ref"`)
		} else if at, ok := ids[sd.Ref]; !ok || at >= index {
			problems = append(problems, fmt.Sprintf("display ref %q does not name an earlier step", sd.Ref))
		}
	case step.KindNumberInput:
		if sd.Value == nil {
			problems = append(problems, `number_input step requires "value"`)
		} else if _, err := evalNumbers(sd.Numeric, []any{sd.Value}); err != nil {
			problems = append(problems, err.Error())
		}
	case step.KindCalculus:
		if sd.Steps <= 0 {
			problems = append(problems, `calculus step requires "steps" > 0`)
		}
		if len(sd.Values) < 2 {
			problems = append(problems, "calculus step requires at least 2 values")
		}
		if !step.Operation(sd.Operation).Valid() {
			problems = append(problems, fmt.Sprintf("unsupported calculus operation %q", sd.Operation))
		}
		if _, err := evalNumbers(sd.Numeric, sd.Values); err != nil {
			problems = append(problems, err.Error())
		}
	case step.KindOutput:
		require("file_type", sd.FileType)
	case step.KindEnd:
	default:
		problems = append(problems, fmt.Sprintf("unknown step type %q", sd.Type))
	}
	return problems
}
