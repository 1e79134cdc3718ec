package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain label unchanged", "Account", "Account"},
		{"underscore kept", "HAS_OWNER", "HAS_OWNER"},
		{"digits kept", "Lead2", "Lead2"},
		{"spaces stripped", "Sales Order", "SalesOrder"},
		{"cypher syntax stripped", "Account` {x: 1}) DETACH DELETE (n", "Accountx1DETACHDELETEn"},
		{"unicode stripped", "Lëad", "Lad"},
		{"empty falls back", "", "Entity"},
		{"all-invalid falls back", "}{`;", "Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeLabel(tt.input))
		})
	}
}
