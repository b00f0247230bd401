package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/canonical"
)

// CreateTable registers a table with its key schema. Only the key attributes
// need definitions; other attributes are schemaless.
func (s *Store) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	if name == "" {
		return nil, validationError("TableName is required")
	}

	defs := make(map[string]types.ScalarAttributeType, len(in.AttributeDefinitions))
	for _, d := range in.AttributeDefinitions {
		defs[aws.ToString(d.AttributeName)] = d.AttributeType
	}

	meta := tableMeta{name: name, status: types.TableStatusActive}
	for _, k := range in.KeySchema {
		attrName := aws.ToString(k.AttributeName)
		kind, ok := defs[attrName]
		if !ok {
			return nil, validationError("key attribute %s has no attribute definition", attrName)
		}
		switch k.KeyType {
		case types.KeyTypeHash:
			meta.hashKey, meta.hashType = attrName, kind
		case types.KeyTypeRange:
			meta.sortKey, meta.sortType = attrName, kind
		}
	}
	if meta.hashKey == "" {
		return nil, validationError("table %s: key schema has no HASH key", name)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_tables (name, hash_key, hash_type, sort_key, sort_type, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, meta.hashKey, string(meta.hashType), meta.sortKey, string(meta.sortType), string(meta.status))
	if err != nil {
		return nil, fmt.Errorf("insert table %s: %w", name, err)
	}
	created, err := s.changes(ctx)
	if err != nil {
		return nil, err
	}
	if created == 0 {
		return nil, inUse(name)
	}

	s.logger.Info("table created", "table", name, "hash_key", meta.hashKey, "sort_key", meta.sortKey)
	return &dynamodb.CreateTableOutput{TableDescription: meta.describe(0)}, nil
}

func (s *Store) changes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT changes()").Scan(&n); err != nil {
		return 0, fmt.Errorf("read changes: %w", err)
	}
	return n, nil
}

// DescribeTable reports a table's key schema, status and item count.
func (s *Store) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	meta, err := s.lookup(ctx, aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM kv_items WHERE table_name = ?", meta.name).Scan(&count); err != nil {
		return nil, fmt.Errorf("count items in %s: %w", meta.name, err)
	}
	return &dynamodb.DescribeTableOutput{Table: meta.describe(count)}, nil
}

// SetTableStatus overrides a table's reported status. The remote store moves
// tables through CREATING, UPDATING and DELETING on its own; this lets tests
// and tools reproduce those states.
func (s *Store) SetTableStatus(ctx context.Context, table string, status types.TableStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE kv_tables SET status = ? WHERE name = ?", string(status), table)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(table)
	}
	return nil
}

// PutItem stores an item, replacing any item with the same key.
func (s *Store) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	meta, err := s.lookup(ctx, aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	if err := checkScalars(in.Item); err != nil {
		return nil, err
	}
	key, err := meta.keyOf(in.Item)
	if err != nil {
		return nil, err
	}

	data, err := canonical.MarshalItem(in.Item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_items (table_name, hash_text, sort_num, sort_text, item)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(table_name, hash_text, sort_num, sort_text) DO UPDATE SET item = excluded.item
	`, meta.name, key.hashText, key.sortNum, key.sortText, string(data))
	if err != nil {
		return nil, fmt.Errorf("put item into %s: %w", meta.name, err)
	}
	return &dynamodb.PutItemOutput{}, nil
}

// Scan reads a page of the whole table in key order.
func (s *Store) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	meta, err := s.lookup(ctx, aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	req, err := newRequest(meta, "", aws.ToString(in.FilterExpression), aws.ToString(in.ProjectionExpression), in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	res, err := s.page(ctx, meta, req, nil, in.ExclusiveStartKey, s.limit(in.Limit))
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.next,
	}, nil
}

// Query reads a page of one partition in sort-key order.
func (s *Store) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	meta, err := s.lookup(ctx, aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	kcText := aws.ToString(in.KeyConditionExpression)
	if kcText == "" {
		return nil, validationError("KeyConditionExpression is required")
	}
	req, err := newRequest(meta, kcText, aws.ToString(in.FilterExpression), aws.ToString(in.ProjectionExpression), in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	kc, err := keyConditionOf(meta, req.keyCondition.root, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	res, err := s.page(ctx, meta, req, kc, in.ExclusiveStartKey, s.limit(in.Limit))
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            res.items,
		Count:            int32(len(res.items)),
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.next,
	}, nil
}

func (s *Store) limit(l *int32) int {
	if l != nil {
		return int(*l)
	}
	return s.pageSize
}

func (s *Store) lookup(ctx context.Context, name string) (*tableMeta, error) {
	if name == "" {
		return nil, validationError("TableName is required")
	}
	m := &tableMeta{name: name}
	var hashType, sortType, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash_key, hash_type, sort_key, sort_type, status FROM kv_tables WHERE name = ?
	`, name).Scan(&m.hashKey, &hashType, &m.sortKey, &sortType, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up table %s: %w", name, err)
	}
	m.hashType = types.ScalarAttributeType(hashType)
	m.sortType = types.ScalarAttributeType(sortType)
	m.status = types.TableStatus(status)
	return m, nil
}

func (m *tableMeta) describe(count int64) *types.TableDescription {
	desc := &types.TableDescription{
		TableName:   aws.String(m.name),
		TableStatus: m.status,
		ItemCount:   aws.Int64(count),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(m.hashKey), AttributeType: m.hashType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(m.hashKey), KeyType: types.KeyTypeHash},
		},
	}
	if m.sortKey != "" {
		desc.AttributeDefinitions = append(desc.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(m.sortKey), AttributeType: m.sortType})
		desc.KeySchema = append(desc.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(m.sortKey), KeyType: types.KeyTypeRange})
	}
	return desc
}

// request is a validated read request.
type request struct {
	keyCondition *parsed
	filter       *parsed
	projection   []string
	values       map[string]types.AttributeValue
}

// newRequest parses the expressions and checks the value map against them:
// every referenced placeholder must be bound, and every bound value must be
// referenced.
func newRequest(meta *tableMeta, keyCondition, filter, projection string, values map[string]types.AttributeValue) (*request, error) {
	req := &request{values: values}
	used := make(map[string]bool)

	if keyCondition != "" {
		p, err := parseExpr(keyCondition)
		if err != nil {
			return nil, validationError("Invalid KeyConditionExpression: %v", err)
		}
		req.keyCondition = p
		for ph := range p.placeholders {
			used[ph] = true
		}
	}
	if strings.TrimSpace(filter) != "" {
		p, err := parseExpr(filter)
		if err != nil {
			return nil, validationError("Invalid FilterExpression: %v", err)
		}
		req.filter = p
		for ph := range p.placeholders {
			used[ph] = true
		}
	}
	if strings.TrimSpace(projection) != "" {
		names, err := parseProjection(projection)
		if err != nil {
			return nil, validationError("Invalid ProjectionExpression: %v", err)
		}
		req.projection = names
	}

	for ph := range used {
		if _, ok := values[ph]; !ok {
			return nil, validationError("An expression attribute value used in expression is not defined; attribute value: %s", ph)
		}
	}
	var unused []string
	for ph, av := range values {
		if !used[ph] {
			unused = append(unused, ph)
		}
		if err := checkScalars(map[string]types.AttributeValue{ph: av}); err != nil {
			return nil, err
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return nil, validationError("Value provided in ExpressionAttributeValues unused in expressions: keys: {%s}", strings.Join(unused, ", "))
	}
	return req, nil
}

// keyCond is a query's key condition lowered to SQL.
type keyCond struct {
	hashText string
	sortSQL  string
	sortArgs []any
}

// keyConditionOf accepts hash = :v optionally ANDed with one sort-key
// comparison or BETWEEN, with key names matching the table.
func keyConditionOf(meta *tableMeta, root expr, values map[string]types.AttributeValue) (*keyCond, error) {
	parts := []expr{root}
	if and, ok := root.(andExpr); ok {
		parts = and
	}
	if len(parts) > 2 {
		return nil, validationError("Query key condition not supported: too many conditions")
	}

	kc := &keyCond{}
	var haveHash, haveSort bool
	for _, part := range parts {
		switch e := part.(type) {
		case cmpExpr:
			name, ph, op, ok := normalizeCmp(e)
			if !ok {
				return nil, validationError("Query key condition not supported: each condition needs one key attribute and one value")
			}
			av := values[ph]
			switch {
			case name == meta.hashKey && op == "=" && !haveHash:
				text, _, err := keyText(name, meta.hashType, av)
				if err != nil {
					return nil, err
				}
				kc.hashText = text
				haveHash = true
			case name == meta.sortKey && op != "<>" && !haveSort:
				col, arg, err := sortArg(meta, av)
				if err != nil {
					return nil, err
				}
				kc.sortSQL = fmt.Sprintf(" AND %s %s ?", col, op)
				kc.sortArgs = []any{arg}
				haveSort = true
			default:
				return nil, validationError("Query key condition not supported: %s %s", name, op)
			}
		case betweenExpr:
			if e.subject.placeholder || e.subject.name != meta.sortKey || !e.lo.placeholder || !e.hi.placeholder || haveSort {
				return nil, validationError("Query key condition not supported: BETWEEN only applies to the sort key")
			}
			col, lo, err := sortArg(meta, values[e.lo.name])
			if err != nil {
				return nil, err
			}
			_, hi, err := sortArg(meta, values[e.hi.name])
			if err != nil {
				return nil, err
			}
			kc.sortSQL = fmt.Sprintf(" AND %s BETWEEN ? AND ?", col)
			kc.sortArgs = []any{lo, hi}
			haveSort = true
		default:
			return nil, validationError("Query key condition not supported: OR is not allowed")
		}
	}
	if !haveHash {
		return nil, validationError("Query condition missed key schema element: %s", meta.hashKey)
	}
	return kc, nil
}

// normalizeCmp puts the attribute on the left.
func normalizeCmp(e cmpExpr) (name, placeholder, op string, ok bool) {
	switch {
	case !e.left.placeholder && e.right.placeholder:
		return e.left.name, e.right.name, e.op, true
	case e.left.placeholder && !e.right.placeholder:
		flipped := map[string]string{"=": "=", "<>": "<>", "<": ">", "<=": ">=", ">": "<", ">=": "<="}
		return e.right.name, e.left.name, flipped[e.op], true
	}
	return "", "", "", false
}

func sortArg(meta *tableMeta, av types.AttributeValue) (string, any, error) {
	text, num, err := keyText(meta.sortKey, meta.sortType, av)
	if err != nil {
		return "", nil, err
	}
	if meta.sortType == types.ScalarAttributeTypeN {
		return "sort_num", num, nil
	}
	return "sort_text", text, nil
}

type pageResult struct {
	items   []map[string]types.AttributeValue
	scanned int32
	next    map[string]types.AttributeValue
}

// page reads up to limit key-matching items after the cursor, then applies
// the filter and projection.
func (s *Store) page(ctx context.Context, meta *tableMeta, req *request, kc *keyCond, start map[string]types.AttributeValue, limit int) (*pageResult, error) {
	if limit <= 0 {
		return nil, validationError("Limit must be greater than or equal to 1")
	}

	query := strings.Builder{}
	query.WriteString("SELECT item FROM kv_items WHERE table_name = ?")
	args := []any{meta.name}

	if kc != nil {
		query.WriteString(" AND hash_text = ?")
		args = append(args, kc.hashText)
		query.WriteString(kc.sortSQL)
		args = append(args, kc.sortArgs...)
	}
	if len(start) > 0 {
		key, err := meta.keyOf(start)
		if err != nil {
			return nil, validationError("The provided starting key is invalid: %v", err)
		}
		query.WriteString(" AND (hash_text, sort_num, sort_text) > (?, ?, ?)")
		args = append(args, key.hashText, key.sortNum, key.sortText)
	}
	query.WriteString(" ORDER BY hash_text COLLATE BINARY, sort_num, sort_text COLLATE BINARY LIMIT ?")
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", meta.name, err)
	}
	defer rows.Close()

	var evaluated []map[string]types.AttributeValue
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", meta.name, err)
		}
		item, err := canonical.UnmarshalItem([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", meta.name, err)
		}
		evaluated = append(evaluated, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", meta.name, err)
	}

	res := &pageResult{}
	if len(evaluated) > limit {
		evaluated = evaluated[:limit]
		res.next = meta.keyOnly(evaluated[limit-1])
	}
	res.scanned = int32(len(evaluated))

	for _, item := range evaluated {
		if req.filter != nil && !req.filter.root.eval(item, req.values) {
			continue
		}
		res.items = append(res.items, project(item, req.projection))
	}
	return res, nil
}

func project(item map[string]types.AttributeValue, names []string) map[string]types.AttributeValue {
	if len(names) == 0 {
		return item
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, n := range names {
		if v, ok := item[n]; ok {
			out[n] = v
		}
	}
	return out
}
