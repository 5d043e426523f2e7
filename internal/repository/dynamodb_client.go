package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"coach-agent/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	skState         = "STATE#"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL, refreshed on every write
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps one item per session in a DynamoDB table.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamo creates a DynamoDB-backed session store.
func NewDynamo(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// Get returns the stored session record, or nil when none exists.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            sessionKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	rec, err := itemToRecord(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: Get decode: %w", err)
	}
	rec.SessionID = sessionID
	return rec, nil
}

// Put writes rec if the stored version still equals rec.Version, then bumps
// rec.Version. A lost race is reported as domain.ErrVersionConflict.
func (s *DynamoStore) Put(ctx context.Context, rec *domain.SessionRecord) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("repository: Put: session id is required")
	}
	now := s.now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	next := rec.Version + 1

	item, err := recordItem(rec, next, now)
	if err != nil {
		return fmt.Errorf("repository: Put encode: %w", err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if rec.Version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("#v = :expected")
		in.ExpressionAttributeNames = map[string]string{"#v": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version, 10)},
		}
	}

	if _, err := s.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: Put %s: %w", rec.SessionID, domain.ErrVersionConflict)
		}
		return fmt.Errorf("repository: Put: %w", err)
	}
	rec.Version = next
	return nil
}

func recordItem(rec *domain.SessionRecord, version int64, now time.Time) (map[string]types.AttributeValue, error) {
	state, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(rec.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: skState},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"state":     &types.AttributeValueMemberS{Value: string(state)},
		"version":   &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		"updatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttlDuration).Unix(), 10)},
	}, nil
}

// itemToRecord converts a DynamoDB attribute map to a SessionRecord.
func itemToRecord(item map[string]types.AttributeValue) (*domain.SessionRecord, error) {
	state, err := strAttr(item, "state")
	if err != nil {
		return nil, err
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return nil, err
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(state), &rec); err != nil {
		return nil, fmt.Errorf("repository: unmarshal state: %w", err)
	}
	rec.Version = version
	return &rec, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
