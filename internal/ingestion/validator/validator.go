// Package validator checks document requests and events before they reach
// the indexer. Every failure is an InvalidArgument error carrying per-field
// messages.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/errors"
)

// MaxTextLength bounds a single document's text in bytes.
const MaxTextLength = 1 << 20

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return "invalid argument: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match validation failures with errors.Is against
// apperrors.ErrInvalidArgument.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidArgument
}

func checkText(errs map[string]string, text *string) {
	switch {
	case text == nil:
		errs["text"] = "text is required"
	case len(*text) > MaxTextLength:
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", MaxTextLength)
	}
}

func result(errs map[string]string) error {
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateDocumentRequest requires both id and text.
func ValidateDocumentRequest(req *ingestion.DocumentRequest) error {
	errs := make(map[string]string)
	if req.ID == nil {
		errs["id"] = "id is required"
	}
	checkText(errs, req.Text)
	return result(errs)
}

func ValidateUpdateRequest(req *ingestion.UpdateRequest) error {
	errs := make(map[string]string)
	checkText(errs, req.Text)
	return result(errs)
}

// ValidateEvent requires a known op and an id; upserts also need text.
func ValidateEvent(ev *ingestion.DocumentEvent) error {
	errs := make(map[string]string)
	switch ev.Op {
	case ingestion.OpUpsert:
		checkText(errs, ev.Text)
	case ingestion.OpDelete:
	case "":
		errs["op"] = "op is required"
	default:
		errs["op"] = fmt.Sprintf("unknown op %q", ev.Op)
	}
	if ev.ID == nil {
		errs["id"] = "id is required"
	}
	return result(errs)
}
