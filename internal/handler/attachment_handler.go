package handler

import (
	"net/http"

	"salon-chat/internal/services"
	"salon-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AttachmentHandler struct {
	convService       *services.ConversationService
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(convService *services.ConversationService, attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{convService: convService, attachmentService: attachmentService}
}

// PresignUpload issues a short-lived PUT URL so the client uploads directly
// to object storage; only the resulting key travels through the message log.
func (h *AttachmentHandler) PresignUpload(c *gin.Context) {
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

	if _, _, err := h.convService.VerifyParticipant(c.Request.Context(), conversationID, callerID); err != nil {
		writeAccessError(c, err)
		return
	}

	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	result, err := h.attachmentService.PresignUpload(c.Request.Context(), conversationID, callerID, req.FileName, req.ContentType, req.FileSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		Key:       result.Key,
		UploadURL: result.UploadURL,
		Headers:   result.Headers,
	}))
}

// PresignDownload issues a short-lived GET URL for an attachment key.
func (h *AttachmentHandler) PresignDownload(c *gin.Context) {
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

	if _, _, err := h.convService.VerifyParticipant(c.Request.Context(), conversationID, callerID); err != nil {
		writeAccessError(c, err)
		return
	}

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing key", "INVALID_REQUEST"))
		return
	}

	url, err := h.attachmentService.PresignDownload(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignDownloadResponse{DownloadURL: url}))
}
