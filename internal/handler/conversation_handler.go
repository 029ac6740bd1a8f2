package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/events"
	"salon-chat/internal/services"
	"salon-chat/internal/transport/httpdto"
	salon_errors "salon-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	convService *services.ConversationService
	msgService  *services.MessageService
}

func NewConversationHandler(convService *services.ConversationService, msgService *services.MessageService) *ConversationHandler {
	return &ConversationHandler{convService: convService, msgService: msgService}
}

// Create resolves the open conversation for a (customer, salon, context)
// tuple, creating it when none exists. Concurrent first calls converge on
// one row; the caller that lost the race still gets the winning row back.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	callerID, callerRole, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid customer id", "INVALID_REQUEST"))
		return
	}
	salonID, err := uuid.Parse(req.SalonID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid salon id", "INVALID_REQUEST"))
		return
	}

	// The caller must be one of the two parties.
	switch callerRole {
	case conversation.RoleCustomer:
		if callerID != customerID {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
			return
		}
	case conversation.RoleStaff:
		if callerID != salonID {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
			return
		}
	}

	convCtx := conversation.Context(req.Context)
	if convCtx != conversation.ContextBookingInquiry && convCtx != conversation.ContextSupport {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid context", "INVALID_REQUEST"))
		return
	}

	var bookingID uuid.NullUUID
	if req.BookingID != "" {
		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid booking id", "INVALID_REQUEST"))
			return
		}
		bookingID = uuid.NullUUID{UUID: id, Valid: true}
	}

	conv, created, err := h.convService.GetOrCreate(c.Request.Context(), customerID, salonID, convCtx, bookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	resp := httpdto.ConversationResponseFrom(conv)
	resp.Created = created
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(resp))
}

func (h *ConversationHandler) List(c *gin.Context) {
	callerID, _, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, err := h.convService.ListForParticipant(c.Request.Context(), callerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	out := make([]httpdto.ConversationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, httpdto.ConversationResponseFrom(item))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationListResponse{Conversations: out}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	callerID, _, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conv, _, err := h.convService.VerifyParticipant(c.Request.Context(), conversationID, callerID)
	if err != nil {
		writeAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationResponseFrom(conv)))
}

// History returns one backward page of the conversation log, oldest first
// within the page. The before cursor is an RFC 3339 accepted timestamp.
func (h *ConversationHandler) History(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	callerID, _, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var cursor *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid before cursor", "INVALID_REQUEST"))
			return
		}
		cursor = &t
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, hasMore, err := h.msgService.History(c.Request.Context(), conversationID, callerID, cursor, limit)
	if err != nil {
		writeAccessError(c, err)
		return
	}

	out := make([]events.MessagePayload, 0, len(page))
	for _, m := range page {
		out = append(out, events.MessagePayloadFrom(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.HistoryResponse{Messages: out, HasMore: hasMore}))
}

// MarkRead declares the caller caught up in the conversation.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	callerID, _, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	readAt, err := h.msgService.MarkRead(c.Request.Context(), conversationID, callerID)
	if err != nil {
		writeAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{
		ConversationID: conversationID,
		ReadAt:         readAt,
	}))
}

func (h *ConversationHandler) Archive(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	callerID, _, err := services.IdentityFrom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.convService.Archive(c.Request.Context(), conversationID, callerID); err != nil {
		writeAccessError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeAccessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, salon_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, salon_errors.ErrNotParticipant):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, salon_errors.ErrConversationClosed):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conversation archived", "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
