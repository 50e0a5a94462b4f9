package enrollment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cmeonline/enrollments/core"
)

var (
	// custom validation tags & texts
	programStatusTag  = "programstatus"
	programStatusText = "{0} is not a valid program enrollment status"

	courseStatusTag  = "coursestatus"
	courseStatusText = "{0} is not a valid course enrollment status"

	curriculumTag  = "curriculum"
	curriculumText = "{0} must be a valid UUID"
)

// InitValidators registers the enrollment status and curriculum validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(programStatusTag, statusValidation(ProgramStatuses))
	core.RegisterCustomTranslation(validate, translator, programStatusTag, programStatusText)

	_ = validate.RegisterValidation(courseStatusTag, statusValidation(CourseStatuses))
	core.RegisterCustomTranslation(validate, translator, courseStatusTag, courseStatusText)

	_ = validate.RegisterValidation(curriculumTag, validateCurriculum)
	core.RegisterCustomTranslation(validate, translator, curriculumTag, curriculumText)
}

// validateCurriculum accepts any form uuid.Parse reads, uppercase and undashed hex included.
func validateCurriculum(fl validator.FieldLevel) bool {
	_, err := uuid.Parse(fl.Field().String())
	return err == nil
}

func statusValidation(allowed []Status) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).in(allowed)
	}
}

func isStatusTag(tag string) bool {
	return tag == programStatusTag || tag == courseStatusTag
}
