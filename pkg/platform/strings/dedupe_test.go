package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil slice", nil, nil},
		{"trims and drops empties", []string{" kafka-1:9092 ", "", "  ", "kafka-2:9092"}, []string{"kafka-1:9092", "kafka-2:9092"}},
		{"dedupes preserving order", []string{"b:9092", "a:9092", "b:9092"}, []string{"b:9092", "a:9092"}},
		{"keeps case distinct", []string{"Kafka", "kafka"}, []string{"Kafka", "kafka"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
