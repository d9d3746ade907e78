// Package weft is a query engine that lets heterogeneous data
// sources be queried as graphs. A declarative query is validated and
// lowered against a schema, then lazily executed against an adapter
// that exposes the underlying data as typed vertices with properties
// and edges.
//
// The pipeline is: query text + arguments → parse (package query) →
// type-check and lower (package frontend, producing package ir) →
// lazy execution (package interpreter) against any Adapter.
package weft

import (
	"iter"

	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/interpreter"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
	"github.com/loomhq/weft/value"
)

// ExecuteQuery parses, lowers, and executes a query, returning a lazy
// stream of output rows. Errors detectable before streaming begins
// (parse, frontend, missing variables) are returned immediately; an
// adapter failure mid-stream terminates the iterator with a final
// non-nil error.
func ExecuteQuery(sch *schema.Schema, adapter interpreter.Adapter, queryText string, variables map[string]value.Value) (iter.Seq2[interpreter.OutputRow, error], error) {
	compiled, err := CompileQuery(sch, queryText)
	if err != nil {
		return nil, err
	}
	return interpreter.Execute(sch, adapter, compiled.IR, variables)
}

// CompileQuery parses and lowers a query without executing it. The
// result is immutable and may be cached and shared.
func CompileQuery(sch *schema.Schema, queryText string) (*frontend.CompiledQuery, error) {
	parsed, err := query.Parse(queryText)
	if err != nil {
		return nil, err
	}
	return frontend.Compile(sch, parsed)
}
