package api

const putDocumentMaxSize = 2 * 1024 * 1024 // 2 MiB of document text

// PUT /api/documents/:documentId request body.
type putDocumentRequest struct {
	Content string `json:"content"`
}

// PUT /api/documents/:documentId response body.
type putDocumentResponse struct {
	Skipped bool     `json:"skipped,omitempty"`
	TaskIDs []string `json:"taskIds,omitempty"`
	Content string   `json:"content,omitempty"`
	Error   string   `json:"error,omitempty"`
}
