package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilter(t *testing.T) {
	dispute := &ComparisonRecord{Status: StatusDispute, Similarity: 0.74, Distance: 4, Ordinal: 2}
	agreement := &ComparisonRecord{Status: StatusAgreement, Similarity: 1, Confidence: 1, Ordinal: 1}

	tests := []struct {
		expr           string
		matchDispute   bool
		matchAgreement bool
	}{
		{"status = dispute", true, false},
		{"status != dispute", false, true},
		{`status = "agreement"`, false, true},
		{"similarity < 0.8", true, false},
		{"similarity >= 1", false, true},
		{"distance > 0", true, false},
		{"status = dispute and similarity < 0.8", true, false},
		{"status = dispute AND ordinal = 2", true, false},
		{"", true, true},
	}

	for _, tt := range tests {
		pred, err := CompileFilter(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.matchDispute, pred(dispute), "dispute: %s", tt.expr)
		assert.Equal(t, tt.matchAgreement, pred(agreement), "agreement: %s", tt.expr)
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	invalid := []string{
		"unknownfield = 1",
		"similarity = dispute",
		"status < dispute",
		"status similarity",
	}
	for _, expr := range invalid {
		_, err := CompileFilter(expr)
		assert.Error(t, err, expr)
	}
}
