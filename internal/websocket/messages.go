package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types (client → server)
const (
	MessageTypeStartConversation MessageType = "start_conversation"
	MessageTypeEndConversation   MessageType = "end_conversation"
	MessageTypePause             MessageType = "pause"
	MessageTypeStartListening    MessageType = "start_listening"
	MessageTypeStopListening     MessageType = "stop_listening"
	MessageTypeTranscriptFinal   MessageType = "transcript_final"
	MessageTypeSpeechStarted     MessageType = "speech_started"
	MessageTypeSpeechEnded       MessageType = "speech_ended"
	MessageTypeCapabilityError   MessageType = "capability_error"
)

// Outbound message types (server → client)
const (
	MessageTypeStateChanged   MessageType = "state_changed"
	MessageTypeSpeak          MessageType = "speak"
	MessageTypeCancelSpeech   MessageType = "cancel_speech"
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningStop  MessageType = "listening_stop"
	MessageTypeNotice         MessageType = "notice"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// StartConversationMessage asks the controller to open a conversation
type StartConversationMessage struct {
	BaseMessage
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty,omitempty"`
}

// TranscriptMessage carries one finalized utterance from a client-side
// recognizer
type TranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// CapabilityErrorMessage reports a client-side capability failure
type CapabilityErrorMessage struct {
	BaseMessage
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// SpeakMessage tells the client to speak the text
type SpeakMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// StateChangedMessage pushes the controller snapshot to the client
type StateChangedMessage struct {
	BaseMessage
	Snapshot usecase.StateSnapshot `json:"snapshot"`
}

// NoticeMessage surfaces a transient error notice
type NoticeMessage struct {
	BaseMessage
	Notice domain.Notice `json:"notice"`
}

// ErrorMessage reports a protocol-level error back to the client
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for inbound WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an inbound message, returning the
// concrete typed message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if base.Timestamp == "" {
		base.Timestamp = time.Now().Format(time.RFC3339)
	}

	switch base.Type {
	case MessageTypeStartConversation:
		var msg StartConversationMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid start_conversation message: %w", err)
		}
		if msg.Topic == "" {
			return nil, fmt.Errorf("topic is required")
		}
		return &msg, nil

	case MessageTypeTranscriptFinal:
		var msg TranscriptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript_final message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeCapabilityError:
		var msg CapabilityErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capability_error message: %w", err)
		}
		if msg.Kind == "" {
			return nil, fmt.Errorf("kind is required")
		}
		return &msg, nil

	case MessageTypeEndConversation, MessageTypePause,
		MessageTypeStartListening, MessageTypeStopListening,
		MessageTypeSpeechStarted, MessageTypeSpeechEnded:
		msg := base
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateSpeakMessage creates a speak command for the client
func CreateSpeakMessage(text string) *SpeakMessage {
	return &SpeakMessage{BaseMessage: newBase(MessageTypeSpeak), Text: text}
}

// CreateStateChangedMessage creates a snapshot push
func CreateStateChangedMessage(snapshot usecase.StateSnapshot) *StateChangedMessage {
	return &StateChangedMessage{BaseMessage: newBase(MessageTypeStateChanged), Snapshot: snapshot}
}

// CreateNoticeMessage creates a transient notice push
func CreateNoticeMessage(notice domain.Notice) *NoticeMessage {
	return &NoticeMessage{BaseMessage: newBase(MessageTypeNotice), Notice: notice}
}

// CreateErrorMessage creates a standardized protocol error
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError), Code: code, Message: message}
}
