package validator

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestValidateDocumentRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.DocumentRequest
		fields []string
	}{
		{"valid", ingestion.DocumentRequest{ID: ptr(int64(1)), Text: ptr("hello")}, nil},
		{"empty text is valid", ingestion.DocumentRequest{ID: ptr(int64(0)), Text: ptr("")}, nil},
		{"missing text", ingestion.DocumentRequest{ID: ptr(int64(1))}, []string{"text"}},
		{"missing id", ingestion.DocumentRequest{Text: ptr("x")}, []string{"id"}},
		{"missing both", ingestion.DocumentRequest{}, []string{"id", "text"}},
		{"text too long", ingestion.DocumentRequest{ID: ptr(int64(1)), Text: ptr(strings.Repeat("a", MaxTextLength+1))}, []string{"text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.True(t, apperrors.IsInvalidArgument(err))
			assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
		})
	}
}

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name    string
		ev      ingestion.DocumentEvent
		wantErr bool
	}{
		{"upsert", ingestion.DocumentEvent{Op: ingestion.OpUpsert, ID: ptr(int64(1)), Text: ptr("t")}, false},
		{"delete without text", ingestion.DocumentEvent{Op: ingestion.OpDelete, ID: ptr(int64(1))}, false},
		{"upsert without text", ingestion.DocumentEvent{Op: ingestion.OpUpsert, ID: ptr(int64(1))}, true},
		{"missing op", ingestion.DocumentEvent{ID: ptr(int64(1))}, true},
		{"unknown op", ingestion.DocumentEvent{Op: "merge", ID: ptr(int64(1))}, true},
		{"missing id", ingestion.DocumentEvent{Op: ingestion.OpDelete}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(&tt.ev)
			if tt.wantErr {
				assert.True(t, apperrors.IsInvalidArgument(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUpdateRequest(t *testing.T) {
	assert.NoError(t, ValidateUpdateRequest(&ingestion.UpdateRequest{Text: ptr("new")}))
	assert.True(t, apperrors.IsInvalidArgument(ValidateUpdateRequest(&ingestion.UpdateRequest{})))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"text": "text is required", "id": "id is required"}}
	assert.Equal(t, "invalid argument: id: id is required; text: text is required", err.Error())
}
