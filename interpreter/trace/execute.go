package trace

import (
	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/ir"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

// Execute runs a lowered query with tracing enabled, draining the
// output stream. It returns the completed trace alongside the rows;
// a mid-stream adapter error is returned with the trace and rows
// produced up to that point.
func Execute(sch *schema.Schema, adapter interpreter.Adapter, q *ir.Query, vars map[string]value.Value) (*Trace, []interpreter.OutputRow, error) {
	tap := NewTap(adapter)
	stream, err := interpreter.Execute(sch, tap, q, vars)
	if err != nil {
		return nil, nil, err
	}

	var rows []interpreter.OutputRow
	var streamErr error
	for row, err := range stream {
		if err != nil {
			streamErr = err
			break
		}
		tap.recordResult(row)
		rows = append(rows, row)
	}

	trace := &Trace{IR: q, Arguments: vars, Ops: tap.Ops()}
	return trace, rows, streamErr
}
