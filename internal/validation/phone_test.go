package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
		valid bool
	}{
		{
			name:  "subscriber digits",
			phone: "901234567",
			want:  "+998901234567",
			valid: true,
		},
		{
			name:  "with country code and separators",
			phone: "+998 (90) 123-45-67",
			want:  "+998901234567",
			valid: true,
		},
		{
			name:  "empty",
			phone: "  ",
			want:  "",
			valid: true,
		},
		{
			name:  "too short",
			phone: "90123",
			valid: false,
		},
		{
			name:  "foreign country code",
			phone: "+777901234567",
			valid: false,
		},
		{
			name:  "letters only",
			phone: "abc",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.phone)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomerName(t *testing.T) {
	name, err := CustomerName("  Aziz aka ")
	require.NoError(t, err)
	assert.Equal(t, "Aziz aka", name)

	_, err = CustomerName(" \t")
	assert.ErrorIs(t, err, ErrEmptyName)
}
