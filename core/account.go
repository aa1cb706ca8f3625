package core

import "time"

// Account is the identity a verified email resolves to
type Account struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	TimeCreated time.Time  `json:"time_created"`
	TimeDeleted *time.Time `json:"time_deleted,omitempty"`
}

// Workspace groups users
type Workspace struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	TimeCreated time.Time  `json:"time_created"`
	TimeDeleted *time.Time `json:"time_deleted,omitempty"`
}

// User is an account's membership in a workspace, keyed by (WorkspaceID, ID)
type User struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	WorkspaceID string     `json:"workspace_id"`
	Email       string     `json:"email"`
	TimeSeen    *time.Time `json:"time_seen,omitempty"`
	TimeCreated time.Time  `json:"time_created"`
	TimeDeleted *time.Time `json:"time_deleted,omitempty"`
}
