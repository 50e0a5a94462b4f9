package enrollment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func batchOf(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"external_user_key": "key-%d", "status": "enrolled"}`, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestParseProgramBatch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr error
	}{
		{name: "empty list", body: `[]`, wantLen: 0},
		{name: "object", body: `{"external_user_key": "a", "status": "enrolled"}`, wantErr: ErrMalformedBatch},
		{name: "null", body: `null`, wantErr: ErrMalformedBatch},
		{name: "garbage", body: `lol`, wantErr: ErrMalformedBatch},
		{name: "too large", body: batchOf(MaxBatchSize + 1), wantErr: ErrBatchTooLarge},
		{name: "max size", body: batchOf(MaxBatchSize), wantLen: MaxBatchSize},
		{name: "element not an object", body: `["a"]`, wantErr: ErrInvalidRecord},
		{name: "status not a string", body: `[{"external_user_key": "a", "status": 1}]`, wantErr: ErrInvalidRecord},
		{
			name:    "records",
			body:    `[{"external_user_key": "a", "status": "enrolled", "curriculum_uuid": "0e14e883-1f1b-4a17-a4e3-6d6bd0a8a2b3"}, {"external_user_key": "b", "status": "lol"}]`,
			wantLen: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := ParseProgramBatch([]byte(tt.body))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, reqs, tt.wantLen)
		})
	}
}

func TestParseCourseBatch(t *testing.T) {
	reqs, err := ParseCourseBatch([]byte(`[{"student_key": "l1", "status": "active"}, {"student_key": "l2", "status": "inactive"}]`))
	assert.NoError(t, err)
	assert.Equal(t, []NewCourseEnrollment{
		{StudentKey: "l1", Status: StatusActive},
		{StudentKey: "l2", Status: StatusInactive},
	}, reqs)

	_, err = ParseCourseBatch([]byte(`{}`))
	assert.Equal(t, ErrMalformedBatch, err)
}

func TestBatchResult_Outcome(t *testing.T) {
	tests := []struct {
		name string
		res  BatchResult
		want Outcome
	}{
		{name: "empty batch", res: BatchResult{}, want: FullyApplied},
		{name: "all applied", res: BatchResult{Requested: 3, Applied: 3}, want: FullyApplied},
		{name: "some applied", res: BatchResult{Requested: 3, Applied: 1}, want: PartiallyApplied},
		{name: "none applied", res: BatchResult{Requested: 3}, want: FullyRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Outcome())
		})
	}
}

func TestStatus_IsError(t *testing.T) {
	for _, s := range []Status{StatusDuplicated, StatusConflict, StatusInvalid, StatusNotInProgram} {
		assert.True(t, s.IsError(), s)
	}
	for _, s := range append(append([]Status{}, ProgramStatuses...), CourseStatuses...) {
		assert.False(t, s.IsError(), s)
	}
}
