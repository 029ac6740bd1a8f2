package httpdto

// PresignUploadRequest is used for POST /conversations/:id/attachments
type PresignUploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PresignUploadResponse carries the presigned PUT target for a direct
// client upload.
type PresignUploadResponse struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// PresignDownloadResponse carries a short-lived GET URL for an attachment.
type PresignDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}
