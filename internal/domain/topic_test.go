package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCaptureContext(t *testing.T) {
	c, err := ParseCaptureContext("")
	assert.NoError(t, err)
	assert.Equal(t, CaptureContextManual, c)

	c, err = ParseCaptureContext("mcp")
	assert.NoError(t, err)
	assert.Equal(t, CaptureContextMCP, c)

	_, err = ParseCaptureContext("email")
	assert.ErrorIs(t, err, ErrInvalidCaptureContext)
}

func TestValidateTopic(t *testing.T) {
	valid := func() *Topic {
		return &Topic{
			ID:             "topic-1",
			SpaceID:        "space-1",
			Title:          "Use TypeScript for type safety",
			Content:        "We decided to migrate all new modules to TypeScript.",
			CodeExamples:   []CodeExample{{Code: "const x: number = 1", Language: "typescript"}},
			CaptureContext: CaptureContextMCP,
			CreatedBy:      "user-1",
			Status:         TopicStatusPending,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(t *Topic)
		wantErr bool
	}{
		{name: "valid", mutate: func(t *Topic) {}},
		{name: "no examples", mutate: func(t *Topic) { t.CodeExamples = nil }},
		{name: "blank title", mutate: func(t *Topic) { t.Title = "   " }, wantErr: true},
		{name: "blank content", mutate: func(t *Topic) { t.Content = "" }, wantErr: true},
		{name: "missing space", mutate: func(t *Topic) { t.SpaceID = "" }, wantErr: true},
		{name: "missing creator", mutate: func(t *Topic) { t.CreatedBy = "" }, wantErr: true},
		{name: "bad context", mutate: func(t *Topic) { t.CaptureContext = "EMAIL" }, wantErr: true},
		{name: "empty example", mutate: func(t *Topic) { t.CodeExamples = []CodeExample{{Code: " "}} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic := valid()
			tt.mutate(topic)
			err := ValidateTopic(topic)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
