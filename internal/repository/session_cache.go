package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	skSession   = "SESSION#"
	ttlDuration = 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by SessionCache.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionCache keeps a best-effort copy of the last conversation id issued
// to a browser client. The copy is never read back as a live session: page
// loads call Forget before anything else.
type SessionCache struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new SessionCache.
func New(api dynamodbAPI, tableName string) (*SessionCache, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &SessionCache{api: api, tableName: tableName, now: time.Now}, nil
}

// clientPK returns the DynamoDB partition key for a browser client.
func clientPK(clientID string) string {
	return "CLIENT#" + clientID
}

func (c *SessionCache) key(clientID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: clientPK(clientID)},
		"SK": &types.AttributeValueMemberS{Value: skSession},
	}
}

// Remember stores the conversation id most recently started by clientID.
func (c *SessionCache) Remember(ctx context.Context, clientID, conversationID string) error {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: Remember: client id and conversation id are required")
	}

	now := c.now().UTC()
	item := c.key(clientID)
	item["conversationId"] = &types.AttributeValueMemberS{Value: conversationID}
	item["createdAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttlDuration).Unix(), 10)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Remember: %w", err)
	}
	return nil
}

// Forget deletes the cached conversation id for clientID and returns the
// discarded value, or "" when nothing was cached.
func (c *SessionCache) Forget(ctx context.Context, clientID string) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", errors.New("repository: Forget: client id is required")
	}

	out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.tableName),
		Key:          c.key(clientID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return "", fmt.Errorf("repository: Forget: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return "", nil
	}

	discarded, err := strAttr(out.Attributes, "conversationId")
	if err != nil {
		return "", fmt.Errorf("repository: Forget decode: %w", err)
	}
	return discarded, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
