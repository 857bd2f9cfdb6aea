// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"fmt"
	"sort"

	"github.com/juju/errors"
)

// ActionParams returns the parameters of the running action.
func (e *Env) ActionParams() (map[string]interface{}, error) {
	var params map[string]interface{}
	if err := e.runJSON(&params, "action-get"); err != nil {
		return nil, errors.Trace(err)
	}
	return params, nil
}

// ActionSetResults records action results. Nested maps are flattened
// with dotted keys, the encoding action-set expects.
func (e *Env) ActionSetResults(results map[string]interface{}) error {
	flat := map[string]string{}
	flatten("", results, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, flat[k]))
	}
	_, err := e.runner.RunTool("action-set", args...)
	return errors.Trace(err)
}

// ActionFail marks the running action as failed with a message.
func (e *Env) ActionFail(message string) error {
	_, err := e.runner.RunTool("action-fail", message)
	return errors.Trace(err)
}

// ActionLog reports progress of the running action.
func (e *Env) ActionLog(message string) error {
	_, err := e.runner.RunTool("action-log", message)
	return errors.Trace(err)
}

func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = fmt.Sprintf("%v", v)
	}
}
