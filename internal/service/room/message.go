package room

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	roomRepo "github.com/soundroom/server/internal/repository/room"
)

// skipCommands are the chat texts treated as a skip vote instead of a plain
// message.
var skipCommands = map[string]struct{}{
	"!skip":      {},
	"!vote skip": {},
}

type SendMessageParams struct {
	RoomId string
	Sender Identity
	Text   string
}

type SendMessageResponse struct {
	Message Message
	// IsSkipVote marks chat-command skip votes. The message is still
	// stored and broadcast so the room sees who voted.
	IsSkipVote bool
}

func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	msg, err := s.roomRepo.AddMessage(ctx, &roomRepo.AddMessageParams{
		RoomId:      params.RoomId,
		MessageId:   uuid.NewString(),
		Text:        params.Text,
		UserId:      params.Sender.UserId,
		Username:    params.Sender.DisplayName,
		IsAnonymous: params.Sender.IsAnonymous,
	})
	if err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to add message: %w", err)
	}

	_, isSkipVote := skipCommands[strings.ToLower(strings.TrimSpace(params.Text))]

	return SendMessageResponse{
		Message:    messageFromRepo(msg),
		IsSkipVote: isSkipVote,
	}, nil
}

// SendSystemMessage posts an announcement attributed to the room itself,
// such as vote tallies and skip notices.
func (s *service) SendSystemMessage(ctx context.Context, roomId, text string) (Message, error) {
	msg, err := s.roomRepo.AddMessage(ctx, &roomRepo.AddMessageParams{
		RoomId:    roomId,
		MessageId: uuid.NewString(),
		Text:      text,
		UserId:    "system",
		Username:  "System",
		IsSystem:  true,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	return messageFromRepo(msg), nil
}

func (s *service) GetMessages(ctx context.Context, roomId string) ([]Message, error) {
	messages, err := s.roomRepo.GetMessages(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	res := make([]Message, 0, len(messages))
	for _, m := range messages {
		res = append(res, messageFromRepo(m))
	}

	return res, nil
}
