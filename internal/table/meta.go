package table

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/attr"
)

// CreateMetaTable creates the meta table keyed by TABLE_NAME.
func CreateMetaTable(ctx context.Context, api API, name string) error {
	_, err := api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(MetaKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(MetaKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create meta table %s: %w", name, err)
	}
	return nil
}

// AddTableSchema registers a table's columns in the meta table.
func AddTableSchema(ctx context.Context, api API, metaTable, name string, attrs []attr.Attribute) error {
	item := map[string]types.AttributeValue{
		MetaKey: &types.AttributeValueMemberS{Value: name},
	}
	for _, a := range attrs {
		if a.Name == MetaKey {
			return fmt.Errorf("table %s: column name %s is reserved", name, MetaKey)
		}
		if !a.Kind.Valid() {
			return fmt.Errorf("table %s: column %s: invalid kind %q", name, a.Name, a.Kind)
		}
		item[a.Name] = &types.AttributeValueMemberS{Value: string(a.Kind)}
	}

	_, err := api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(metaTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("register table %s in %s: %w", name, metaTable, err)
	}
	return nil
}

// CreateDataTable creates a table whose key schema matches schema.
func CreateDataTable(ctx context.Context, api API, name string, schema *attr.Schema) error {
	hashKind, _ := schema.Kind(schema.HashKey())
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(schema.HashKey()), AttributeType: types.ScalarAttributeType(hashKind)},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(schema.HashKey()), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	if sk := schema.SortKey(); sk != "" {
		sortKind, _ := schema.Kind(sk)
		in.AttributeDefinitions = append(in.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(sk), AttributeType: types.ScalarAttributeType(sortKind)})
		in.KeySchema = append(in.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange})
	}

	if _, err := api.CreateTable(ctx, in); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// PutRow encodes a row of generic scalars against schema and stores it.
// Nil values are left out of the item.
func PutRow(ctx context.Context, api API, name string, schema *attr.Schema, row map[string]any) error {
	item := make(map[string]types.AttributeValue, len(row))
	for col, v := range row {
		if v == nil {
			continue
		}
		kind, ok := schema.Kind(col)
		if !ok {
			return fmt.Errorf("table %s: column %s is not declared", name, col)
		}
		av, err := attr.EncodeAs(col, kind, v)
		if err != nil {
			return fmt.Errorf("table %s: %w", name, err)
		}
		item[col] = av
	}

	_, err := api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(name),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item into %s: %w", name, err)
	}
	return nil
}
