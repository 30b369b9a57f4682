package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "plain", id: "c1"},
		{name: "uuid", id: "4f9c2a0e-61b5-4c57-9d7f-0b5a1f3e2d11"},
		{name: "empty", id: "", wantErr: true},
		{name: "blank", id: "   ", wantErr: true},
		{name: "nested path", id: "c1/tasks/t1", wantErr: true},
		{name: "trailing slash", id: "c1/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("client id", tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Contains(t, err.Error(), "client id")
				return
			}
			assert.NoError(t, err)
		})
	}
}
