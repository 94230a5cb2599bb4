package models

import "time"

type GroupCategory string

const (
	CategoryClub         GroupCategory = "club"
	CategoryProject      GroupCategory = "project"
	CategoryInterest     GroupCategory = "interest"
	CategoryCourse       GroupCategory = "course"
	CategoryOrganization GroupCategory = "organization"
)

var GroupCategories = []GroupCategory{CategoryClub, CategoryProject, CategoryInterest, CategoryCourse, CategoryOrganization}

type GroupStatus string

const (
	GroupPending  GroupStatus = "pending"
	GroupApproved GroupStatus = "approved"
	GroupRejected GroupStatus = "rejected"
)

type Group struct {
	ID             string        `db:"id" json:"id"`
	Name           string        `db:"name" json:"name"`
	Slug           string        `db:"slug" json:"slug"`
	Description    *string       `db:"description" json:"description"`
	Category       GroupCategory `db:"category" json:"category"`
	CreatorID      *string       `db:"creator_id" json:"creatorId"`
	Status         GroupStatus   `db:"status" json:"status"`
	IsPublic       bool          `db:"is_public" json:"isPublic"`
	RejectedReason *string       `db:"rejected_reason" json:"rejectedReason,omitempty"`
	ReviewedBy     *string       `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time    `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

type GroupWithCreator struct {
	Group
	Creator *UserLite `json:"creator"`
}

type GroupWithStats struct {
	GroupWithCreator
	MemberCount int `json:"memberCount"`
	PostCount   int `json:"postCount"`
}

// GroupPatch is a partial update; nil fields are left untouched.
type GroupPatch struct {
	Name        *string
	Description *string
	Category    *GroupCategory
	IsPublic    *bool
}
