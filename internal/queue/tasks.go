package queue

const (
	TypeDocumentOCR = "document:ocr"

	QueueDefault = "default"
)

// Queues is the priority map handed to the worker server.
var Queues = map[string]int{QueueDefault: 1}

// DocumentOCRPayload identifies the document whose blob should be converted
// to text. Exactly one is enqueued per created document.
type DocumentOCRPayload struct {
	DocumentID string `json:"document_id"`
}
