package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	TYPE_USER_JOIN       = "user_join"
	TYPE_CHAT_MESSAGE    = "chat_message"
	TYPE_TOPIC_CHANGE    = "topic_change"
	TYPE_USER_LIST       = "user_list"
	TYPE_MESSAGE_HISTORY = "message_history"
	TYPE_SYSTEM          = "system"
	TYPE_ROBOT           = "robot"
)

const (
	MAX_CONTENT_LENGTH  = 500
	MAX_NICKNAME_LENGTH = 20
)

// Envelope is the decoded form of any frame on the wire, in either direction.
// Only the fields relevant to Type are populated.
type Envelope struct {
	Type string `json:"type"`

	Nickname string `json:"nickname,omitempty"`

	ID        string `json:"id,omitempty"`
	Content   string `json:"content,omitempty"`
	Author    string `json:"author,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	IsOwn     bool   `json:"isOwn,omitempty"`
	NewTopic  string `json:"newTopic,omitempty"`

	Users        []User    `json:"users,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	CurrentTopic string    `json:"currentTopic,omitempty"`
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

type JoinRequest struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
}

func NewJoinRequest(nickname string) JoinRequest {
	return JoinRequest{Type: TYPE_USER_JOIN, Nickname: nickname}
}

type ChatRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func NewChatRequest(content string) ChatRequest {
	return ChatRequest{Type: TYPE_CHAT_MESSAGE, Content: content}
}

type TopicChangeRequest struct {
	Type string `json:"type"`
}

func NewTopicChangeRequest() TopicChangeRequest {
	return TopicChangeRequest{Type: TYPE_TOPIC_CHANGE}
}

type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	JoinTime string `json:"joinTime"`
}

// Message is one entry of the room log as stored by the relay. isOwn is not a
// property of the message; it is computed per recipient in MessageEvent.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Kind      Kind   `json:"type"`
}

// MessageEvent is the relay->client frame for a single message. Type is the
// envelope tag (chat_message, system, robot or topic_change).
type MessageEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	IsOwn     bool   `json:"isOwn"`
	NewTopic  string `json:"newTopic,omitempty"`
}

func NewMessageEvent(m Message) MessageEvent {
	return MessageEvent{
		Type:      m.Kind.EnvelopeType(),
		ID:        m.ID,
		Content:   m.Content,
		Author:    m.Author,
		Timestamp: m.Timestamp,
	}
}

func NewTopicEvent(m Message, newTopic string) MessageEvent {
	event := NewMessageEvent(m)
	event.Type = TYPE_TOPIC_CHANGE
	event.NewTopic = newTopic
	return event
}

type UserListEvent struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

func NewUserListEvent(users []User) UserListEvent {
	if users == nil {
		users = []User{}
	}
	return UserListEvent{Type: TYPE_USER_LIST, Users: users}
}

type HistoryEvent struct {
	Type         string    `json:"type"`
	Messages     []Message `json:"messages"`
	CurrentTopic string    `json:"currentTopic"`
}

func NewHistoryEvent(messages []Message, currentTopic string) HistoryEvent {
	if messages == nil {
		messages = []Message{}
	}
	return HistoryEvent{Type: TYPE_MESSAGE_HISTORY, Messages: messages, CurrentTopic: currentTopic}
}
