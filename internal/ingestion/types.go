// Package ingestion defines the request types and Kafka event schema through
// which documents enter the search node.
package ingestion

// Document operations carried by DocumentEvent.Op.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// DocumentRequest is the JSON body of POST /api/v1/documents. Pointer fields
// distinguish an absent value from a zero one: a missing text is an error,
// an empty text is a valid document with no terms.
type DocumentRequest struct {
	ID   *int64  `json:"id"`
	Text *string `json:"text"`
}

// UpdateRequest is the JSON body of PUT /api/v1/documents/{id}.
type UpdateRequest struct {
	Text *string `json:"text"`
}

// DocumentResponse is returned after a document write is accepted.
type DocumentResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// DocumentEvent is the payload of the documents Kafka topic. Text is
// required for upserts and ignored for deletes.
type DocumentEvent struct {
	Op   string  `json:"op"`
	ID   *int64  `json:"id"`
	Text *string `json:"text,omitempty"`
}
