// Package fixture loads table definitions and items from CUE and seeds them
// into a store.
//
// A fixture file declares tables under "table":
//
//	table: orders: {
//		hashKey: "customer"
//		sortKey: "placed"
//		columns: {customer: "S", placed: "N", note: "S"}
//		items: [
//			{customer: "c1", placed: 1, note: "first"},
//		]
//	}
//
// Column kinds are N, S or B. Numbers may be written as ints or floats; B
// columns take CUE bytes literals ('\x01\x02') or strings.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/logging"
	"github.com/roach88/dynaql/internal/table"
)

const schemaSource = `
#Kind: "N" | "S" | "B"

#Table: {
	hashKey:  string & !=""
	sortKey?: string & !=""
	columns: [string]: #Kind
	items?: [...{...}]
}

#Fixture: {
	table: [string]: #Table
}
`

// Error is a fixture problem with its CUE source position, when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Table is one fixture table.
type Table struct {
	Name   string
	Schema *attr.Schema
	Items  []map[string]any
}

// Fixture is every table of a fixture file, in declaration order.
type Fixture struct {
	Tables []Table
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles CUE source and checks it against the fixture schema.
// filename is used in error positions only.
func Parse(filename string, src []byte) (*Fixture, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("fixture-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile fixture schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	v = schema.LookupPath(cue.ParsePath("#Fixture")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("table")).Fields()
	if err != nil {
		return nil, cueError(err)
	}

	f := &Fixture{}
	for iter.Next() {
		t, err := parseTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		f.Tables = append(f.Tables, *t)
	}
	if len(f.Tables) == 0 {
		return nil, &Error{Field: "table", Message: "fixture declares no tables", Pos: v.Pos()}
	}
	return f, nil
}

func parseTable(name string, v cue.Value) (*Table, error) {
	hashKey, err := v.LookupPath(cue.ParsePath("hashKey")).String()
	if err != nil {
		return nil, cueError(err)
	}
	var sortKey string
	if sk := v.LookupPath(cue.ParsePath("sortKey")); sk.Exists() {
		if sortKey, err = sk.String(); err != nil {
			return nil, cueError(err)
		}
	}

	var attrs []attr.Attribute
	cols, err := v.LookupPath(cue.ParsePath("columns")).Fields()
	if err != nil {
		return nil, cueError(err)
	}
	for cols.Next() {
		kind, err := cols.Value().String()
		if err != nil {
			return nil, cueError(err)
		}
		attrs = append(attrs, attr.Attribute{Name: cols.Label(), Kind: attr.Kind(kind)})
	}

	schema, err := attr.NewSchema(attrs, hashKey, sortKey)
	if err != nil {
		return nil, &Error{Field: "table." + name, Message: err.Error(), Pos: v.Pos()}
	}

	t := &Table{Name: name, Schema: schema}
	itemsVal := v.LookupPath(cue.ParsePath("items"))
	if !itemsVal.Exists() {
		return t, nil
	}
	items, err := itemsVal.List()
	if err != nil {
		return nil, cueError(err)
	}
	for i := 0; items.Next(); i++ {
		item, err := parseItem(schema, items.Value())
		if err != nil {
			var fe *Error
			if errors.As(err, &fe) {
				fe.Field = fmt.Sprintf("table.%s.items[%d].%s", name, i, fe.Field)
			}
			return nil, err
		}
		t.Items = append(t.Items, item)
	}
	return t, nil
}

func parseItem(schema *attr.Schema, v cue.Value) (map[string]any, error) {
	item := make(map[string]any)
	fields, err := v.Fields()
	if err != nil {
		return nil, cueError(err)
	}
	for fields.Next() {
		col := fields.Label()
		fv := fields.Value()
		kind, ok := schema.Kind(col)
		if !ok {
			return nil, &Error{Field: col, Message: "column is not declared", Pos: fv.Pos()}
		}

		var val any
		switch kind {
		case attr.KindNumber:
			val, err = fv.Float64()
		case attr.KindString:
			val, err = fv.String()
		case attr.KindBinary:
			val, err = fv.Bytes()
		}
		if err != nil {
			return nil, &Error{Field: col, Message: fmt.Sprintf("want kind %s: %v", kind, err), Pos: fv.Pos()}
		}
		item[col] = val
	}

	for _, key := range []string{schema.HashKey(), schema.SortKey()} {
		if _, ok := item[key]; key != "" && !ok {
			return nil, &Error{Field: key, Message: "key attribute is required", Pos: v.Pos()}
		}
	}
	return item, nil
}

// cueError keeps the first error's position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Field: "cue", Message: first.Error()}
}

// Seed creates the meta table if it does not exist yet, then creates every
// fixture table, registers its schema and writes its items.
func (f *Fixture) Seed(ctx context.Context, api table.API, metaTable string, logger *slog.Logger) error {
	logger = logging.Default(logger)

	if err := table.CreateMetaTable(ctx, api, metaTable); err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return err
		}
		logger.Debug("meta table exists", "meta_table", metaTable)
	}

	for _, t := range f.Tables {
		if err := table.CreateDataTable(ctx, api, t.Name, t.Schema); err != nil {
			return err
		}
		if err := table.AddTableSchema(ctx, api, metaTable, t.Name, t.Schema.Attributes()); err != nil {
			return err
		}
		for _, item := range t.Items {
			if err := table.PutRow(ctx, api, t.Name, t.Schema, item); err != nil {
				return err
			}
		}
		logger.Info("table seeded", "table", t.Name, "items", len(t.Items))
	}
	return nil
}
