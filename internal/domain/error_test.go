package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_Formatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Code: EINVALID, Message: "amount must be positive"},
			want: "amount must be positive",
		},
		{
			name: "with op",
			err:  &Error{Code: EINVALID, Op: "payment.process", Message: "amount must be positive"},
			want: "payment.process: amount must be positive",
		},
		{
			name: "with wrapped error",
			err:  &Error{Code: EINTERNAL, Op: "payment.process", Message: "failed to save", Err: errors.New("connection refused")},
			want: "payment.process: failed to save: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func Test_ErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, ENOTFOUND, ErrorCode(NotFound("payment.get", "payment", "abc")))
	assert.Equal(t, EINTERNAL, ErrorCode(errors.New("plain error")))

	// Code survives wrapping with fmt.Errorf.
	wrapped := fmt.Errorf("outer: %w", Invalid("payment.validate", "bad input"))
	assert.Equal(t, EINVALID, ErrorCode(wrapped))
}

func Test_ErrorMessage_HidesInternalDetails(t *testing.T) {
	internal := Internal(errors.New("pq: duplicate key"), "invoice.create", "failed to create invoice")
	assert.NotContains(t, ErrorMessage(internal), "duplicate key")

	assert.Equal(t, "Invoice not found", ErrorMessage(&Error{Code: ENOTFOUND, Message: "Invoice not found"}))
	assert.NotEmpty(t, ErrorMessage(errors.New("raw")))
}
