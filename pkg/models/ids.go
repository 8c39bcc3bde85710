package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// flexID decodes an identifier sent either as a JSON string or as a number.
// Some evaluation service builds emit integer primary keys for task_id.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// UnmarshalJSON decodes a task, accepting a numeric task_id.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		TaskID flexID `json:"task_id"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.TaskID = string(aux.TaskID)
	return nil
}

// UnmarshalJSON decodes a report, accepting a numeric task_id.
func (r *Report) UnmarshalJSON(data []byte) error {
	type plain Report
	aux := struct {
		*plain
		TaskID flexID `json:"task_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.TaskID = string(aux.TaskID)
	return nil
}

// UnmarshalJSON decodes a create response, accepting a numeric task_id.
func (c *CreateEvaluationResponse) UnmarshalJSON(data []byte) error {
	type plain CreateEvaluationResponse
	aux := struct {
		*plain
		TaskID flexID `json:"task_id"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.TaskID = string(aux.TaskID)
	return nil
}
