package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/opsdeck/opsdeck/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error passes through", ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"validation", domain.NewValidationError(map[string]string{"mrr": "MRR must be a positive number."}), http.StatusUnprocessableEntity, CodeValidation},
		{"permission", &domain.PermissionError{Path: "organizations/acme", Operation: domain.OperationUpdate}, http.StatusForbidden, CodePermissionDenied},
		{"not found", fmt.Errorf("%w: organizations/acme", domain.ErrDocumentNotFound), http.StatusNotFound, CodeNotFound},
		{"conflict", domain.ErrAlreadyExists, http.StatusConflict, CodeConflict},
		{"malformed output", fmt.Errorf("%w: missing quote field", domain.ErrMalformedOutput), http.StatusBadGateway, CodeGenerationFailed},
		{"unclassified", errors.New("connection reset by peer"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, got.Status)
			}
			if got.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, got.Code)
			}
		})
	}
}

func TestMapError_KeepsFieldsAndRawMessages(t *testing.T) {
	got := MapError(domain.NewValidationError(map[string]string{"industry": "Industry is required."}))
	if got.Fields["industry"] != "Industry is required." {
		t.Errorf("Expected field message to survive, got %v", got.Fields)
	}

	raw := MapError(errors.New("connection reset by peer"))
	if raw.Message != "connection reset by peer" {
		t.Errorf("Expected raw message, got %q", raw.Message)
	}

	gen := MapError(fmt.Errorf("%w: upstream said 500 with secrets", domain.ErrGenerationFailed))
	if gen.Message != "could not generate quote" {
		t.Errorf("Expected a generic generation message, got %q", gen.Message)
	}
}
