package task

import "maps"

// Merge copies the task's op_kwargs into the context and sets
// "templates_dict", even when the task has none.
func (c Context) Merge(t *Task) {
	maps.Copy(c, t.OpKwargs)
	c["templates_dict"] = t.TemplatesDict
}

// SubprocessKwargs returns the keyword arguments handed to the generated
// script. Configured op_kwargs are not forwarded; only a non-empty
// templates_dict survives, under the "templates_dict" key.
func (t *Task) SubprocessKwargs() map[string]any {
	kwargs := make(map[string]any)
	if len(t.TemplatesDict) > 0 {
		kwargs["templates_dict"] = t.TemplatesDict
	}
	return kwargs
}

// SubprocessArgs returns the positional arguments handed to the generated script.
func (t *Task) SubprocessArgs() []any {
	if t.OpArgs == nil {
		return []any{}
	}
	return t.OpArgs
}
