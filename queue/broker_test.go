package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		filter  string
		subject string
		want    bool
	}{
		{"DOCFLOW.preprocessing.>", "DOCFLOW.preprocessing.abc", true},
		{"DOCFLOW.preprocessing.>", "DOCFLOW.preprocessing.a.b", true},
		{"DOCFLOW.preprocessing.>", "DOCFLOW.preprocessing", false},
		{"DOCFLOW.preprocessing.>", "DOCFLOW.processing.abc", false},
		{"DOCFLOW.*.abc", "DOCFLOW.processing.abc", true},
		{"DOCFLOW.*.abc", "DOCFLOW.processing.def", false},
		{"DOCFLOW.dead.processing.>", "DOCFLOW.dead.processing.abc", true},
		{"DOCFLOW.processing.abc", "DOCFLOW.processing.abc", true},
		{"DOCFLOW.processing.abc", "DOCFLOW.processing.abc.extra", false},
		{">", "anything.at.all", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchSubject(tt.filter, tt.subject),
			"filter=%q subject=%q", tt.filter, tt.subject)
	}
}

func TestStage_Routing(t *testing.T) {
	assert.Equal(t, "DOCFLOW.processing.>", StageProcessing.WildcardSubject())
	assert.Equal(t, "docflow-preprocessing-workers", StagePreprocessing.ConsumerName())

	next, ok := StagePreprocessing.Next()
	assert.True(t, ok)
	assert.Equal(t, StageProcessing, next)

	next, ok = StageProcessing.Next()
	assert.True(t, ok)
	assert.Equal(t, StagePostprocessing, next)

	_, ok = StagePostprocessing.Next()
	assert.False(t, ok)
}
