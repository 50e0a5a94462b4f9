package catalog

import "github.com/google/uuid"

// Program is a catalog program: a curriculum offering composed of one or more course runs.
type Program struct {
	UUID            uuid.UUID `json:"uuid"`
	Title           string    `json:"title"`
	OrganizationKey string    `json:"organization_key"` // authoring organization, scopes learner accounts
	CourseKeys      []string  `json:"course_keys"`
}

func (p Program) HasCourse(courseKey string) bool {
	for _, key := range p.CourseKeys {
		if key == courseKey {
			return true
		}
	}
	return false
}

// NewProgram contains information needed to register a Program in the catalog.
type NewProgram struct {
	UUID            string   `json:"uuid" validate:"required,uuid"`
	Title           string   `json:"title" validate:"notblank"`
	OrganizationKey string   `json:"organization_key" validate:"notblank"`
	CourseKeys      []string `json:"course_keys" validate:"dive,notblank"`
}
