package groups

import "time"

// Group is a roster unit within an organization, usually a team but also
// training squads or age cohorts.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	GroupType      string    `json:"group_type"`
	Season         string    `json:"season,omitempty"`
	LeadPersonID   string    `json:"lead_person_id,omitempty"`
	Capacity       int       `json:"capacity,omitempty"`
	ScheduleNote   string    `json:"schedule_note,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Membership links a person to a group with a role within it. The payer
// is whoever carries the fees for this membership, usually a parent.
type Membership struct {
	ID            string     `json:"id"`
	PersonID      string     `json:"person_id"`
	GroupID       string     `json:"group_id"`
	Role          string     `json:"role"`
	PayerPersonID string     `json:"payer_person_id,omitempty"`
	Active        bool       `json:"active"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
}

// CreateGroupInput holds the fields required to create a group.
type CreateGroupInput struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	GroupType      string `json:"group_type"`
	Season         string `json:"season,omitempty"`
	LeadPersonID   string `json:"lead_person_id,omitempty"`
	Capacity       int    `json:"capacity,omitempty"`
	ScheduleNote   string `json:"schedule_note,omitempty"`
}
