package enrollment

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cmeonline/enrollments/core"
)

var (
	// request errors: the whole batch is rejected
	ErrMalformedBatch = core.NewRequestError("malformed_batch", "request body must be a list of enrollment records")
	ErrBatchTooLarge  = core.NewRequestError("batch_too_large", fmt.Sprintf("a batch may contain at most %d records", MaxBatchSize))
	ErrInvalidRecord  = core.NewRequestError("invalid_record", "invalid enrollment record")
)

// ParseProgramBatch decodes a program enrollment request body.
func ParseProgramBatch(data []byte) ([]NewProgramEnrollment, error) {
	raw, err := splitBatch(data)
	if err != nil {
		return nil, err
	}
	reqs := make([]NewProgramEnrollment, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &reqs[i]); err != nil {
			return nil, ErrInvalidRecord
		}
	}
	return reqs, nil
}

// ParseCourseBatch decodes a program course enrollment request body.
func ParseCourseBatch(data []byte) ([]NewCourseEnrollment, error) {
	raw, err := splitBatch(data)
	if err != nil {
		return nil, err
	}
	reqs := make([]NewCourseEnrollment, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &reqs[i]); err != nil {
			return nil, ErrInvalidRecord
		}
	}
	return reqs, nil
}

// splitBatch checks the body is a list no longer than MaxBatchSize, without decoding its elements.
func splitBatch(data []byte) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, ErrMalformedBatch
	}
	if len(raw) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	return raw, nil
}

type batchRecord struct {
	key   string
	value interface{} // the request struct, for validation
}

// screenBatch rejects the batch if it is too large or holds an invalid record,
// then tags every duplicated key and every record with an unknown status.
// It returns the indexes of the records left to process.
func screenBatch(validate *validator.Validate, recs []batchRecord) (BatchResult, []int, error) {
	result := BatchResult{Requested: len(recs), Statuses: make(map[string]Status, len(recs))}
	if len(recs) > MaxBatchSize {
		return result, nil, ErrBatchTooLarge
	}

	badStatus := make([]bool, len(recs))
	for i, rec := range recs {
		bad, err := checkRecord(validate, rec.value)
		if err != nil {
			return result, nil, err
		}
		badStatus[i] = bad
	}

	counts := make(map[string]int, len(recs))
	for _, rec := range recs {
		counts[rec.key]++
	}

	remaining := make([]int, 0, len(recs))
	for i, rec := range recs {
		switch {
		case counts[rec.key] > 1:
			result.Statuses[rec.key] = StatusDuplicated
		case badStatus[i]:
			result.Statuses[rec.key] = StatusInvalid
		default:
			remaining = append(remaining, i)
		}
	}
	return result, remaining, nil
}

// checkRecord reports whether the only problem of the record is its status value.
// Any other validation failure returns ErrInvalidRecord.
func checkRecord(validate *validator.Validate, rec interface{}) (badStatus bool, err error) {
	err = validate.Struct(rec)
	if err == nil {
		return false, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false, err
	}
	for _, fe := range verrs {
		if fe.StructField() == "Status" && isStatusTag(fe.Tag()) {
			badStatus = true
			continue
		}
		return false, ErrInvalidRecord
	}
	return badStatus, nil
}
