package account

// Account is a learner account linked to the student key an organization knows it by.
type Account struct {
	ID              int64  `json:"id"` // user id
	Username        string `json:"username"`
	Email           string `json:"email"`
	OrganizationKey string `json:"organization_key"`
	ExternalUserKey string `json:"external_user_key"`
}

// NewAccount contains information needed to link a learner account to an organization.
type NewAccount struct {
	Username        string `json:"username" validate:"notblank"`
	Email           string `json:"email" validate:"omitempty,email"`
	OrganizationKey string `json:"organization_key" validate:"notblank"`
	ExternalUserKey string `json:"external_user_key" validate:"notblank"`
}
