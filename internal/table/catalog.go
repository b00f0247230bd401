package table

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/logging"
)

// MetaKey is the hash key of the meta table. Every other attribute of a meta
// item names one column of the described table, with the column's scalar kind
// (N, S or B) as its string value.
const MetaKey = "TABLE_NAME"

// API is the store surface used by discovery and the meta-table tools.
// *dynamodb.Client satisfies it.
type API interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Catalog is the set of tables discovered from the meta table.
type Catalog struct {
	tables map[string]*Table
}

// Discover reads every meta item, describes the named table, and builds its
// Config. Tables that are not ACTIVE are skipped with a warning. A meta item
// that does not yield a valid schema fails discovery.
//
// Column order is hash key, sort key, then the remaining columns by name: a
// stored item carries no attribute order of its own.
func Discover(ctx context.Context, api API, metaTable string, opts ...Option) (*Catalog, error) {
	probe := &Table{}
	for _, opt := range opts {
		opt(probe)
	}
	logger := logging.Default(probe.logger).With("meta_table", metaTable)

	cat := &Catalog{tables: make(map[string]*Table)}
	pages := dynamodb.NewScanPaginator(api, &dynamodb.ScanInput{TableName: aws.String(metaTable)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan meta table %s: %w", metaTable, err)
		}
		for _, item := range page.Items {
			cfg, ok, err := describe(ctx, api, item, logger)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			cat.tables[cfg.Name] = New(api, cfg, opts...)
		}
	}

	logger.Info("tables discovered", "count", len(cat.tables))
	return cat, nil
}

func describe(ctx context.Context, api API, item map[string]types.AttributeValue, logger *slog.Logger) (Config, bool, error) {
	nameAV, ok := item[MetaKey].(*types.AttributeValueMemberS)
	if !ok || nameAV.Value == "" {
		return Config{}, false, fmt.Errorf("meta item without a string %s", MetaKey)
	}
	name := nameAV.Value

	out, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return Config{}, false, fmt.Errorf("describe table %s: %w", name, err)
	}
	desc := out.Table
	if desc == nil || desc.TableStatus != types.TableStatusActive {
		status := "UNKNOWN"
		if desc != nil {
			status = string(desc.TableStatus)
		}
		logger.Warn("skipping table that is not active", "table", name, "status", status)
		return Config{}, false, nil
	}

	var hashKey, sortKey string
	for _, k := range desc.KeySchema {
		switch k.KeyType {
		case types.KeyTypeHash:
			hashKey = aws.ToString(k.AttributeName)
		case types.KeyTypeRange:
			sortKey = aws.ToString(k.AttributeName)
		}
	}

	columns := make(map[string]attr.Kind, len(item))
	for col, av := range item {
		if col == MetaKey {
			continue
		}
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return Config{}, false, fmt.Errorf("table %s: column %s: kind must be a string attribute", name, col)
		}
		kind, err := attr.ParseKind(col, s.Value)
		if err != nil {
			return Config{}, false, fmt.Errorf("table %s: %w", name, err)
		}
		columns[col] = kind
	}

	schema, err := attr.NewSchema(orderColumns(columns, hashKey, sortKey), hashKey, sortKey)
	if err != nil {
		return Config{}, false, fmt.Errorf("table %s: %w", name, err)
	}
	return Config{Name: name, Schema: schema}, true, nil
}

// orderColumns lists hash key, sort key, then the rest sorted by name. Key
// columns missing from the map are left out so NewSchema reports them.
func orderColumns(columns map[string]attr.Kind, hashKey, sortKey string) []attr.Attribute {
	var rest []string
	for name := range columns {
		if name != hashKey && name != sortKey {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	var out []attr.Attribute
	for _, name := range append([]string{hashKey, sortKey}, rest...) {
		if kind, ok := columns[name]; ok && name != "" {
			out = append(out, attr.Attribute{Name: name, Kind: kind})
		}
	}
	return out
}

// Table returns a discovered table by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Names returns the discovered table names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
