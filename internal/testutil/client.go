package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PageKey is the attribute the scripted client puts in every cursor it hands
// out. Its numeric value is the index of the next page.
const PageKey = "__page"

// Page is one scripted response.
type Page struct {
	Items []map[string]types.AttributeValue

	// Err, when set, is returned instead of the page.
	Err error
}

// ScriptedClient is a fake store client that serves pre-arranged pages.
//
// Paging is stateless: the page returned is chosen by the request's
// ExclusiveStartKey, so a reset enumerator that re-requests from the start
// gets the same pages again. Every page but the last carries a cursor.
//
// Scans serve ScanPages. Queries serve QueryPages keyed by the request's key
// condition expression; an unknown key condition yields one empty page.
//
// Every request is recorded for inspection.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedClient struct {
	ScanPages  []Page
	QueryPages map[string][]Page

	mu      sync.Mutex
	scans   []*dynamodb.ScanInput
	queries []*dynamodb.QueryInput
}

// Scan serves the scripted scan page selected by the cursor.
func (c *ScriptedClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	c.mu.Lock()
	c.scans = append(c.scans, in)
	c.mu.Unlock()

	items, next, err := serve(c.ScanPages, in.ExclusiveStartKey)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next, Count: int32(len(items))}, nil
}

// Query serves the scripted query page for the key condition selected by the
// cursor.
func (c *ScriptedClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	c.queries = append(c.queries, in)
	c.mu.Unlock()

	items, next, err := serve(c.QueryPages[aws.ToString(in.KeyConditionExpression)], in.ExclusiveStartKey)
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next, Count: int32(len(items))}, nil
}

// ScanInputs returns the recorded scan requests in order.
func (c *ScriptedClient) ScanInputs() []*dynamodb.ScanInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.ScanInput(nil), c.scans...)
}

// QueryInputs returns the recorded query requests in order.
func (c *ScriptedClient) QueryInputs() []*dynamodb.QueryInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dynamodb.QueryInput(nil), c.queries...)
}

func serve(pages []Page, cursor map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	idx := 0
	if n, ok := cursor[PageKey].(*types.AttributeValueMemberN); ok {
		idx, _ = strconv.Atoi(n.Value)
	}
	if idx >= len(pages) {
		return nil, nil, nil
	}

	page := pages[idx]
	if page.Err != nil {
		return nil, nil, page.Err
	}

	var next map[string]types.AttributeValue
	if idx+1 < len(pages) {
		next = map[string]types.AttributeValue{PageKey: N(strconv.Itoa(idx + 1))}
	}
	return page.Items, next, nil
}

// S builds a string attribute value.
func S(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// N builds a number attribute value from its decimal text.
func N(v string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: v}
}

// B builds a binary attribute value.
func B(v []byte) types.AttributeValue {
	return &types.AttributeValueMemberB{Value: v}
}
