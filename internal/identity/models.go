package identity

import "time"

// Person is the canonical identity record. One row per human, regardless
// of how many roles or profiles they carry.
type Person struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AuthUID        string    `json:"auth_uid"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Active         bool      `json:"active"`
	Admin          bool      `json:"admin"`
	Superadmin     bool      `json:"superadmin"`
	CreatedBy      string    `json:"created_by,omitempty"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName joins the name parts, tolerating either being empty.
func (p *Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Profile is the basketball-domain extension of a person. Not every
// person has one; pure org-side staff do not.
type Profile struct {
	ID          string    `json:"id"`
	PersonID    string    `json:"person_id"`
	PersonType  string    `json:"person_type"`
	DisplayName string    `json:"display_name,omitempty"`
	Admin       bool      `json:"admin"`
	Superadmin  bool      `json:"superadmin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Organization is a tenant: a club or program that owns teams, grants
// and pack features.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePersonInput holds the fields required to create a person.
type CreatePersonInput struct {
	OrganizationID string `json:"organization_id"`
	AuthUID        string `json:"auth_uid"`
	Email          string `json:"email"`
	Password       string `json:"password,omitempty"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CreatedBy      string `json:"created_by,omitempty"`
}

// UpdatePersonInput holds optional fields for a partial person update.
type UpdatePersonInput struct {
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	Admin     *bool   `json:"admin,omitempty"`
	UpdatedBy string  `json:"-"`
}

// Session is an opaque-token login session. Only the token hash is stored.
type Session struct {
	TokenHash string    `json:"-"`
	PersonID  string    `json:"person_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
