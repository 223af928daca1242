package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrContentTooShort", ErrContentTooShort},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrPermanent", ErrPermanent},
		{"ErrLeaseExpired", ErrLeaseExpired},
		{"ErrTaskNotClaimable", ErrTaskNotClaimable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", fmt.Errorf("bad field: %w", ErrInvalidInput), false},
		{"not found", fmt.Errorf("link l-1: %w", ErrNotFound), false},
		{"too short", fmt.Errorf("30 chars: %w", ErrContentTooShort), false},
		{"configuration", fmt.Errorf("openai: %w", ErrConfiguration), false},
		{"permanent", fmt.Errorf("status 404: %w", ErrPermanent), false},
		{"rate limited", fmt.Errorf("openai: %w", ErrRateLimited), true},
		{"timeout", context.DeadlineExceeded, true},
		{"plain", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
