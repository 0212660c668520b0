// Package mocks provides shared hand-written mocks for the pipeline's
// interfaces.
//
// Each mock has a function field per method (XxxFn) that overrides the
// default behaviour, default return values, and call tracking guarded by a
// mutex so mocks can be shared with goroutines:
//
//	q := &mocks.MockJobQueue{
//	    PushFn: func(ctx context.Context, job domain.SummaryJob) error {
//	        return errors.New("redis down")
//	    },
//	}
//	// ... exercise code ...
//	assert.Equal(t, 1, q.PushCount())
package mocks
