package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/task.schema.json
var taskSchemaJSON string

//go:embed schemas/report.schema.json
var reportSchemaJSON string

// schemaPrinter formats validation error messages.
var schemaPrinter = message.NewPrinter(language.English)

var (
	taskSchema   = mustCompileSchema(taskSchemaJSON, "task.schema.json")
	reportSchema = mustCompileSchema(reportSchemaJSON, "report.schema.json")
)

// ErrInvalidResponse marks a response body that does not match the
// expected shape.
var ErrInvalidResponse = errors.New("invalid response")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateTask checks a task JSON document.
func ValidateTask(data []byte) error {
	return validateDocument(taskSchema, "task", data)
}

// ValidateTaskList checks a JSON array of tasks, item by item.
func ValidateTaskList(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: task list: %v", ErrInvalidResponse, err)
	}
	for i, item := range items {
		if err := validateDocument(taskSchema, fmt.Sprintf("task list[%d]", i), item); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReport checks a report JSON document.
func ValidateReport(data []byte) error {
	return validateDocument(reportSchema, "report", data)
}

func validateDocument(sch *jsonschema.Schema, what string, data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, what, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidResponse, what, strings.Join(schemaErrors(err), "; "))
	}
	return nil
}

func schemaErrors(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	collectSchemaErrors(ve, &out)
	return out
}

func collectSchemaErrors(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, out)
	}
}
