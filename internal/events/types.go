package events

// Client -> server events.
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
)

// Server -> client events.
const (
	EventMessageNew   = "message:new"
	EventMessageAck   = "message:ack"
	EventMessageRead  = "message:read"
	EventMessageError = "message:error"
	EventTypingUpdate = "typing:update"
	EventTypingActive = "typing:active" // snapshot of current typists, sent on join
)
