package ir

import (
	"encoding/json"
	"fmt"

	"github.com/loomhq/weft/schema"
)

// The serialized IR is a self-describing JSON tree with deterministic
// field order: maps become arrays sorted by id, sum types become
// objects with a "kind" discriminator, and type expressions use
// GraphQL syntax. The same (schema, query) pair always serializes to
// identical bytes.

type queryJSON struct {
	RootName       string            `json:"root_name"`
	RootParameters *EdgeParameters   `json:"root_parameters"`
	RootComponent  *componentJSON    `json:"root_component"`
	Variables      map[string]string `json:"variables,omitempty"`
}

type componentJSON struct {
	RootVid  Vid          `json:"root_vid"`
	Vertices []vertexJSON `json:"vertices"`
	Edges    []edgeJSON   `json:"edges,omitempty"`
	Folds    []foldJSON   `json:"folds,omitempty"`
	Outputs  []outputJSON `json:"outputs,omitempty"`
}

type vertexJSON struct {
	Vid             Vid          `json:"vid"`
	TypeName        string       `json:"type_name"`
	CoercedFromType string       `json:"coerced_from_type,omitempty"`
	Filters         []filterJSON `json:"filters,omitempty"`
}

type edgeJSON struct {
	Eid        Eid             `json:"eid"`
	FromVid    Vid             `json:"from_vid"`
	ToVid      Vid             `json:"to_vid"`
	Name       string          `json:"name"`
	Parameters *EdgeParameters `json:"parameters"`
	Optional   bool            `json:"optional,omitempty"`
	Recursive  *recursionJSON  `json:"recursive,omitempty"`
}

type foldJSON struct {
	Eid             Eid                  `json:"eid"`
	FromVid         Vid                  `json:"from_vid"`
	ToVid           Vid                  `json:"to_vid"`
	Name            string               `json:"name"`
	Parameters      *EdgeParameters      `json:"parameters"`
	Component       *componentJSON       `json:"component"`
	SpecificOutputs []specificOutputJSON `json:"specific_outputs,omitempty"`
	PostFilters     []filterJSON         `json:"post_filters,omitempty"`
	ImportedTags    []sourceJSON         `json:"imported_tags,omitempty"`
	Recursive       *recursionJSON       `json:"recursive,omitempty"`
}

type recursionJSON struct {
	Depth    int    `json:"depth"`
	CoerceTo string `json:"coerce_to,omitempty"`
}

type specificOutputJSON struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type outputJSON struct {
	Name   string     `json:"name"`
	Source sourceJSON `json:"source"`
}

type sourceJSON struct {
	Kind      string `json:"kind"`
	Vid       Vid    `json:"vid,omitempty"`
	FieldName string `json:"field_name,omitempty"`
	FieldType string `json:"field_type,omitempty"`
	Eid       Eid    `json:"eid,omitempty"`
	FoldKind  string `json:"fold_kind,omitempty"`
	InnerName string `json:"inner_name,omitempty"`
}

type filterJSON struct {
	Op    string        `json:"op"`
	Left  argumentJSON  `json:"left"`
	Right *argumentJSON `json:"right,omitempty"`
}

type argumentJSON struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Vid  Vid    `json:"vid,omitempty"`
	Eid  Eid    `json:"eid,omitempty"`
}

// MarshalJSON serializes the query deterministically.
func (q *Query) MarshalJSON() ([]byte, error) {
	dto, err := queryToJSON(q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto)
}

// UnmarshalJSON parses a serialized query.
func (q *Query) UnmarshalJSON(data []byte) error {
	var dto queryJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	parsed, err := queryFromJSON(&dto)
	if err != nil {
		return err
	}
	*q = *parsed
	return nil
}

func queryToJSON(q *Query) (*queryJSON, error) {
	component, err := componentToJSON(q.RootComponent)
	if err != nil {
		return nil, err
	}
	dto := &queryJSON{
		RootName:       q.RootName,
		RootParameters: q.RootParameters,
		RootComponent:  component,
	}
	if len(q.Variables) > 0 {
		dto.Variables = make(map[string]string, len(q.Variables))
		for name, typ := range q.Variables {
			dto.Variables[name] = typ.String()
		}
	}
	return dto, nil
}

func queryFromJSON(dto *queryJSON) (*Query, error) {
	component, err := componentFromJSON(dto.RootComponent)
	if err != nil {
		return nil, err
	}
	params := dto.RootParameters
	if params == nil {
		params = NoEdgeParameters()
	}
	q := &Query{
		RootName:       dto.RootName,
		RootParameters: params,
		RootComponent:  component,
	}
	if len(dto.Variables) > 0 {
		q.Variables = make(map[string]*schema.TypeRef, len(dto.Variables))
		for name, typ := range dto.Variables {
			parsed, err := schema.ParseTypeRef(typ)
			if err != nil {
				return nil, err
			}
			q.Variables[name] = parsed
		}
	}
	return q, nil
}

func componentToJSON(c *Component) (*componentJSON, error) {
	dto := &componentJSON{RootVid: c.RootVid}
	for _, vid := range c.VidOrder() {
		vertex := c.Vertices[vid]
		filters, err := filtersToJSON(vertex.Filters)
		if err != nil {
			return nil, err
		}
		dto.Vertices = append(dto.Vertices, vertexJSON{
			Vid:             vertex.Vid,
			TypeName:        vertex.TypeName,
			CoercedFromType: vertex.CoercedFromType,
			Filters:         filters,
		})
	}
	for _, eid := range c.EdgeOrder() {
		if edge, ok := c.Edges[eid]; ok {
			dto.Edges = append(dto.Edges, edgeJSON{
				Eid:        edge.Eid,
				FromVid:    edge.FromVid,
				ToVid:      edge.ToVid,
				Name:       edge.Name,
				Parameters: edge.Parameters,
				Optional:   edge.Optional,
				Recursive:  recursionToJSON(edge.Recursive),
			})
			continue
		}
		fold := c.Folds[eid]
		foldDTO, err := foldToJSON(fold)
		if err != nil {
			return nil, err
		}
		dto.Folds = append(dto.Folds, *foldDTO)
	}
	for _, output := range c.Outputs {
		source, err := sourceToJSON(output.Source)
		if err != nil {
			return nil, err
		}
		dto.Outputs = append(dto.Outputs, outputJSON{Name: output.Name, Source: *source})
	}
	return dto, nil
}

func componentFromJSON(dto *componentJSON) (*Component, error) {
	c := &Component{
		RootVid:  dto.RootVid,
		Vertices: make(map[Vid]*Vertex, len(dto.Vertices)),
		Edges:    make(map[Eid]*Edge, len(dto.Edges)),
		Folds:    make(map[Eid]*Fold, len(dto.Folds)),
	}
	for _, v := range dto.Vertices {
		filters, err := filtersFromJSON(v.Filters)
		if err != nil {
			return nil, err
		}
		c.Vertices[v.Vid] = &Vertex{
			Vid:             v.Vid,
			TypeName:        v.TypeName,
			CoercedFromType: v.CoercedFromType,
			Filters:         filters,
		}
	}
	for _, e := range dto.Edges {
		params := e.Parameters
		if params == nil {
			params = NoEdgeParameters()
		}
		c.Edges[e.Eid] = &Edge{
			Eid:        e.Eid,
			FromVid:    e.FromVid,
			ToVid:      e.ToVid,
			Name:       e.Name,
			Parameters: params,
			Optional:   e.Optional,
			Recursive:  recursionFromJSON(e.Recursive),
		}
	}
	for i := range dto.Folds {
		fold, err := foldFromJSON(&dto.Folds[i])
		if err != nil {
			return nil, err
		}
		c.Folds[fold.Eid] = fold
	}
	for _, o := range dto.Outputs {
		source, err := sourceFromJSON(&o.Source)
		if err != nil {
			return nil, err
		}
		c.Outputs = append(c.Outputs, Output{Name: o.Name, Source: source})
	}
	return c, nil
}

func foldToJSON(fold *Fold) (*foldJSON, error) {
	component, err := componentToJSON(fold.Component)
	if err != nil {
		return nil, err
	}
	postFilters, err := filtersToJSON(fold.PostFilters)
	if err != nil {
		return nil, err
	}
	dto := &foldJSON{
		Eid:         fold.Eid,
		FromVid:     fold.FromVid,
		ToVid:       fold.ToVid,
		Name:        fold.Name,
		Parameters:  fold.Parameters,
		Component:   component,
		PostFilters: postFilters,
		Recursive:   recursionToJSON(fold.Recursive),
	}
	for _, specific := range fold.SpecificOutputs {
		dto.SpecificOutputs = append(dto.SpecificOutputs, specificOutputJSON{
			Name: specific.Name,
			Kind: specific.Kind.String(),
		})
	}
	for _, tag := range fold.ImportedTags {
		dto.ImportedTags = append(dto.ImportedTags, sourceJSON{
			Kind:      "context_field",
			Vid:       tag.Vid,
			FieldName: tag.FieldName,
			FieldType: tag.FieldType.String(),
		})
	}
	return dto, nil
}

func foldFromJSON(dto *foldJSON) (*Fold, error) {
	component, err := componentFromJSON(dto.Component)
	if err != nil {
		return nil, err
	}
	postFilters, err := filtersFromJSON(dto.PostFilters)
	if err != nil {
		return nil, err
	}
	params := dto.Parameters
	if params == nil {
		params = NoEdgeParameters()
	}
	fold := &Fold{
		Eid:         dto.Eid,
		FromVid:     dto.FromVid,
		ToVid:       dto.ToVid,
		Name:        dto.Name,
		Parameters:  params,
		Component:   component,
		PostFilters: postFilters,
		Recursive:   recursionFromJSON(dto.Recursive),
	}
	for _, specific := range dto.SpecificOutputs {
		kind, err := foldSpecificKindFromString(specific.Kind)
		if err != nil {
			return nil, err
		}
		fold.SpecificOutputs = append(fold.SpecificOutputs, FoldSpecificOutput{
			Name: specific.Name,
			Kind: kind,
		})
	}
	for i := range dto.ImportedTags {
		source, err := sourceFromJSON(&dto.ImportedTags[i])
		if err != nil {
			return nil, err
		}
		field, ok := source.(ContextField)
		if !ok {
			return nil, fmt.Errorf("ir: imported tag must be a context field")
		}
		fold.ImportedTags = append(fold.ImportedTags, field)
	}
	return fold, nil
}

func recursionToJSON(r *Recursion) *recursionJSON {
	if r == nil {
		return nil
	}
	return &recursionJSON{Depth: r.Depth, CoerceTo: r.CoerceTo}
}

func recursionFromJSON(dto *recursionJSON) *Recursion {
	if dto == nil {
		return nil
	}
	return &Recursion{Depth: dto.Depth, CoerceTo: dto.CoerceTo}
}

func sourceToJSON(source OutputSource) (*sourceJSON, error) {
	switch s := source.(type) {
	case ContextField:
		return &sourceJSON{
			Kind:      "context_field",
			Vid:       s.Vid,
			FieldName: s.FieldName,
			FieldType: s.FieldType.String(),
		}, nil
	case FoldSpecificField:
		return &sourceJSON{Kind: "fold_specific", Eid: s.Eid, FoldKind: s.Kind.String()}, nil
	case FoldElements:
		return &sourceJSON{Kind: "fold_elements", Eid: s.Eid, InnerName: s.InnerName}, nil
	default:
		return nil, fmt.Errorf("ir: unhandled output source %T", source)
	}
}

func sourceFromJSON(dto *sourceJSON) (OutputSource, error) {
	switch dto.Kind {
	case "context_field":
		typ, err := schema.ParseTypeRef(dto.FieldType)
		if err != nil {
			return nil, err
		}
		return ContextField{Vid: dto.Vid, FieldName: dto.FieldName, FieldType: typ}, nil
	case "fold_specific":
		kind, err := foldSpecificKindFromString(dto.FoldKind)
		if err != nil {
			return nil, err
		}
		return FoldSpecificField{Eid: dto.Eid, Kind: kind}, nil
	case "fold_elements":
		return FoldElements{Eid: dto.Eid, InnerName: dto.InnerName}, nil
	default:
		return nil, fmt.Errorf("ir: unknown output source kind %q", dto.Kind)
	}
}

func foldSpecificKindFromString(s string) (FoldSpecificKind, error) {
	switch s {
	case "count":
		return FoldSpecificCount, nil
	default:
		return 0, fmt.Errorf("ir: unknown fold-specific kind %q", s)
	}
}

func filtersToJSON(filters []Filter) ([]filterJSON, error) {
	out := make([]filterJSON, 0, len(filters))
	for _, filter := range filters {
		left, err := argumentToJSON(filter.Left)
		if err != nil {
			return nil, err
		}
		dto := filterJSON{Op: filter.Op.String(), Left: *left}
		if filter.Right != nil {
			right, err := argumentToJSON(filter.Right)
			if err != nil {
				return nil, err
			}
			dto.Right = right
		}
		out = append(out, dto)
	}
	return out, nil
}

func filtersFromJSON(dtos []filterJSON) ([]Filter, error) {
	out := make([]Filter, 0, len(dtos))
	for _, dto := range dtos {
		op, ok := ParseOperator(dto.Op)
		if !ok {
			return nil, fmt.Errorf("ir: unknown operator %q", dto.Op)
		}
		left, err := argumentFromJSON(&dto.Left)
		if err != nil {
			return nil, err
		}
		filter := Filter{Op: op, Left: left}
		if dto.Right != nil {
			right, err := argumentFromJSON(dto.Right)
			if err != nil {
				return nil, err
			}
			filter.Right = right
		}
		out = append(out, filter)
	}
	return out, nil
}

func argumentToJSON(arg Argument) (*argumentJSON, error) {
	switch a := arg.(type) {
	case LocalField:
		return &argumentJSON{Kind: "local_field", Name: a.Name, Type: a.Type.String()}, nil
	case Variable:
		return &argumentJSON{Kind: "variable", Name: a.Name, Type: a.Type.String()}, nil
	case ContextField:
		return &argumentJSON{Kind: "context_field", Name: a.FieldName, Type: a.FieldType.String(), Vid: a.Vid}, nil
	case FoldCount:
		return &argumentJSON{Kind: "fold_count", Eid: a.Eid}, nil
	default:
		return nil, fmt.Errorf("ir: unhandled filter argument %T", arg)
	}
}

func argumentFromJSON(dto *argumentJSON) (Argument, error) {
	parseType := func() (*schema.TypeRef, error) {
		return schema.ParseTypeRef(dto.Type)
	}
	switch dto.Kind {
	case "local_field":
		typ, err := parseType()
		if err != nil {
			return nil, err
		}
		return LocalField{Name: dto.Name, Type: typ}, nil
	case "variable":
		typ, err := parseType()
		if err != nil {
			return nil, err
		}
		return Variable{Name: dto.Name, Type: typ}, nil
	case "context_field":
		typ, err := parseType()
		if err != nil {
			return nil, err
		}
		return ContextField{Vid: dto.Vid, FieldName: dto.Name, FieldType: typ}, nil
	case "fold_count":
		return FoldCount{Eid: dto.Eid}, nil
	default:
		return nil, fmt.Errorf("ir: unknown filter argument kind %q", dto.Kind)
	}
}
