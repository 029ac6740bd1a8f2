package httpdto

import (
	"salon-chat/internal/events"
)

// HistoryResponse is one backward page of a conversation's message log,
// returned oldest-first within the page.
type HistoryResponse struct {
	Messages []events.MessagePayload `json:"messages"`
	HasMore  bool                    `json:"has_more"`
}
