package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soundroom/server/internal/repository/room"
)

// messagesKept caps the chat history retained per room.
const messagesKept = 200

func (r repo) getMessagesKey(roomId string) string {
	return "room:" + roomId + ":messages"
}

func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (room.Message, error) {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return room.Message{}, fmt.Errorf("failed to get server time: %w", err)
	}

	msg := room.Message{
		Id:          params.MessageId,
		Text:        params.Text,
		UserId:      params.UserId,
		Username:    params.Username,
		IsAnonymous: params.IsAnonymous,
		IsSystem:    params.IsSystem,
		Timestamp:   now,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return room.Message{}, err
	}

	messagesKey := r.getMessagesKey(params.RoomId)
	pipe := r.rc.TxPipeline()
	pipe.RPush(ctx, messagesKey, raw)
	pipe.LTrim(ctx, messagesKey, -messagesKept, -1)
	pipe.Expire(ctx, messagesKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return room.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	return msg, nil
}

func (r repo) GetMessages(ctx context.Context, roomId string) ([]room.Message, error) {
	raws, err := r.rc.LRange(ctx, r.getMessagesKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]room.Message, 0, len(raws))
	for _, raw := range raws {
		var msg room.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}
