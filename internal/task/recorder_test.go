package task

import (
	"context"
	"errors"
	"testing"

	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestResultRecorder_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantMsg   string
		wantLevel string
	}{
		{
			name:      "deleted post",
			err:       store.NewStoreError("post", "mark_completed", "no rows", store.ErrPostNotFound),
			wantMsg:   "post no longer exists, result dropped",
			wantLevel: "WARN",
		},
		{
			name:      "database failure",
			err:       errors.New("dial postgres://app:pw@db:5432/blog: connection refused"),
			wantMsg:   "failed to store summary",
			wantLevel: "ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, buf := logger.NewTestLogger()
			s := newFakeStore()
			s.err = tc.err
			r := NewResultRecorder(s, log)

			assert.NotPanics(t, func() { r.Completed(context.Background(), 1, "summary") })

			entries := buf.Entries()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tc.wantMsg, entries[0]["msg"])
				assert.Equal(t, tc.wantLevel, entries[0]["level"])
			}
			assert.NotContains(t, buf.String(), "app:pw", "credentials are redacted")
		})
	}
}
