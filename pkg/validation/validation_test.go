package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "web", SanitizeString("  w\x00e\x07b \n"))
	assert.Equal(t, "a\tb", SanitizeString("a\tb"))
}

func TestValidateFleetID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"default", false},
		{"web-frontend_2", false},
		{"eu.web", false},
		{"a", false},
		{"", true},
		{"-web", true},
		{"web/api", true},
		{"web api", true},
		{string(make([]byte, 64)), true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateFleetID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"ops", false},
		{"ops.lead@example.com", false},
		{"ab", true},
		{" ops", true},
		{"ops user", true},
		{"ops;drop", true},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "valid", password: "Sup3r-secret"},
		{name: "short", password: "Ab1!", wantErr: "at least 8"},
		{name: "no upper", password: "sup3r-secret", wantErr: "uppercase"},
		{name: "no lower", password: "SUP3R-SECRET", wantErr: "lowercase"},
		{name: "no digit", password: "Super-secret", wantErr: "number"},
		{name: "no special", password: "Sup3rsecret", wantErr: "special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
