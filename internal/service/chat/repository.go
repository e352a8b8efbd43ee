package chat

import (
	"context"
	"errors"
	"sort"
	"strings"

	"restaurant-chat-backend/internal/database"
	"restaurant-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound      = errors.New("chat repository: not found")
	ErrAlreadyClosed = errors.New("chat repository: session already closed")
)

type Repository interface {
	CreateSession(ctx context.Context, session model.ChatSessionItem) error
	GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error)
	ListOpenSessions(ctx context.Context, identity model.Identity) ([]model.ChatSessionItem, error)
	ListSessions(ctx context.Context, limit int) ([]model.ChatSessionItem, error)
	CloseSession(ctx context.Context, pk, endTime string) error
	CreateMessage(ctx context.Context, message model.ChatMessageItem) error
	LatestMessage(ctx context.Context, sessionID string) (model.ChatMessageItem, error)
	ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateSession(ctx context.Context, session model.ChatSessionItem) error {
	return r.db.Client.PutItem(ctx, model.ChatSessionsTable, session)
}

func (r *DynamoRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ChatSessionsTable,
		"sessionId = :sessionId",
		map[string]types.AttributeValue{
			":sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		database.QueryOptions{IndexName: aws.String("bySessionId")},
	)
	if err != nil && !isIndexNotFound(err) {
		return model.ChatSessionItem{}, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ChatSessionsTable,
			"sessionId = :sessionId",
			map[string]types.AttributeValue{
				":sessionId": &types.AttributeValueMemberS{Value: sessionID},
			},
			nil,
		)
		if err != nil {
			return model.ChatSessionItem{}, err
		}
	}

	if len(items) == 0 {
		return model.ChatSessionItem{}, ErrNotFound
	}

	var session model.ChatSessionItem
	if err := attributevalue.UnmarshalMap(items[0], &session); err != nil {
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

func (r *DynamoRepository) ListOpenSessions(ctx context.Context, identity model.Identity) ([]model.ChatSessionItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ChatSessionsTable,
		"identityKey = :identityKey",
		map[string]types.AttributeValue{
			":identityKey": &types.AttributeValueMemberS{Value: identity.Key()},
		},
		database.QueryOptions{IndexName: aws.String("byIdentity")},
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ChatSessionsTable,
			"identityKind = :identityKind AND identityId = :identityId",
			map[string]types.AttributeValue{
				":identityKind": &types.AttributeValueMemberS{Value: string(identity.Kind)},
				":identityId":   &types.AttributeValueMemberS{Value: identity.ID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	sessions := make([]model.ChatSessionItem, 0, len(items))
	for _, item := range items {
		var session model.ChatSessionItem
		if err := attributevalue.UnmarshalMap(item, &session); err != nil {
			return nil, err
		}
		if session.IdentityKind != identity.Kind || session.IdentityID != identity.ID {
			continue
		}
		if session.Closed() {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionID < sessions[j].SessionID
	})

	return sessions, nil
}

// ListSessions returns sessions for the staff console, newest first by
// startTime. Sessions have no natural global ordering key, so this is a scan
// with a client-side sort.
func (r *DynamoRepository) ListSessions(ctx context.Context, limit int) ([]model.ChatSessionItem, error) {
	items, err := r.db.Client.ScanItems(ctx, model.ChatSessionsTable, "", nil, nil)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.ChatSessionItem, 0, len(items))
	for _, item := range items {
		var session model.ChatSessionItem
		if err := attributevalue.UnmarshalMap(item, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime > sessions[j].StartTime
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// CloseSession sets endTime once; the condition keeps a second close from
// overwriting the first timestamp.
func (r *DynamoRepository) CloseSession(ctx context.Context, pk, endTime string) error {
	err := r.db.Client.UpdateItem(
		ctx,
		model.ChatSessionsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		"SET #endTime = :endTime",
		aws.String("attribute_not_exists(#endTime)"),
		map[string]types.AttributeValue{
			":endTime": &types.AttributeValueMemberS{Value: endTime},
		},
		map[string]string{
			"#endTime": "endTime",
		},
		nil,
	)
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrAlreadyClosed
		}
		return err
	}
	return nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.ChatMessageItem) error {
	return r.db.Client.PutItem(ctx, model.ChatMessagesTable, message)
}

func (r *DynamoRepository) LatestMessage(ctx context.Context, sessionID string) (model.ChatMessageItem, error) {
	messages, err := r.queryMessages(ctx, sessionID, 1, "")
	if err != nil {
		return model.ChatMessageItem{}, err
	}
	if len(messages) == 0 {
		return model.ChatMessageItem{}, ErrNotFound
	}
	return messages[len(messages)-1], nil
}

// ListMessages returns up to limit messages strictly older than before
// (exclusive), ascending. An empty before means the newest page.
func (r *DynamoRepository) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error) {
	return r.queryMessages(ctx, sessionID, limit, before)
}

func (r *DynamoRepository) queryMessages(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error) {
	keyCond := "sessionId = :sessionId"
	values := map[string]types.AttributeValue{
		":sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
	if before != "" {
		keyCond += " AND messageId < :before"
		values[":before"] = &types.AttributeValueMemberS{Value: before}
	}

	scanForward := false
	queryLimit := int32(limit)
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ChatMessagesTable,
		keyCond,
		values,
		database.QueryOptions{
			IndexName:   aws.String("bySession"),
			Limit:       &queryLimit,
			ScanForward: &scanForward,
		},
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ChatMessagesTable,
			"sessionId = :sessionId",
			map[string]types.AttributeValue{
				":sessionId": &types.AttributeValueMemberS{Value: sessionID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.ChatMessageItem, 0, len(items))
	for _, item := range items {
		var message model.ChatMessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		if before != "" && message.MessageID >= before {
			continue
		}
		messages = append(messages, message)
	}

	// ULID message ids sort in insertion order, so ordering never falls back
	// to client-supplied timestamps.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].MessageID < messages[j].MessageID
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}
