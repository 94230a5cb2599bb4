package contract

import (
	"time"

	"github.com/Spok95/campus-community/internal/models"
)

type PageInput struct {
	Page     int `json:"page" validate:"min=0,max=1000000"`
	PageSize int `json:"pageSize" validate:"min=0"`
}

// auth

type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type SignupInput struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Name     *string `json:"name" validate:"omitempty,notblank,min=1,max=50"`
}

// groups

type CreateGroupInput struct {
	Name        string               `json:"name" validate:"required,notblank,min=2,max=100"`
	Slug        string               `json:"slug" validate:"required,max=100,slug"`
	Description *string              `json:"description" validate:"omitempty,max=500"`
	Category    models.GroupCategory `json:"category" validate:"required,oneof=club project interest course organization"`
	IsPublic    *bool                `json:"isPublic"`
}

type UpdateGroupInput struct {
	Name        *string               `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Description *string               `json:"description" validate:"omitempty,max=500"`
	Category    *models.GroupCategory `json:"category" validate:"omitempty,oneof=club project interest course organization"`
	IsPublic    *bool                 `json:"isPublic"`
}

// Empty reports a patch that changes nothing.
func (in UpdateGroupInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Category == nil && in.IsPublic == nil
}

type ReviewGroupInput struct {
	Approved bool    `json:"approved"`
	Reason   *string `json:"reason" validate:"omitempty,max=200"`
}

type ListGroupsInput struct {
	Category models.GroupCategory `json:"category" validate:"omitempty,oneof=club project interest course organization"`
	Search   string               `json:"search" validate:"max=100"`
	PageInput
}

type ListMyGroupsInput struct {
	Status models.MemberStatus `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	PageInput
}

// members

type ListMembersInput struct {
	Role   models.MemberRole   `json:"role" validate:"omitempty,oneof=member admin"`
	Status models.MemberStatus `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	PageInput
}

type UpdateMemberRoleInput struct {
	Role models.MemberRole `json:"role" validate:"required,oneof=member admin"`
}

// posts

type CreatePostInput struct {
	GroupID string          `json:"groupId" validate:"required"`
	Title   string          `json:"title" validate:"required,notblank,max=200"`
	Content string          `json:"content" validate:"required,notblank,max=10000"`
	Type    models.PostType `json:"type" validate:"omitempty,oneof=discussion announcement"`
}

type UpdatePostInput struct {
	Title   *string `json:"title" validate:"omitempty,notblank,max=200"`
	Content *string `json:"content" validate:"omitempty,notblank,max=10000"`
}

type ListPostsInput struct {
	Type models.PostType `json:"type" validate:"omitempty,oneof=discussion announcement"`
	PageInput
}

// feedback

type CreateFeedbackInput struct {
	TargetType  models.FeedbackTarget `json:"targetType" validate:"required,oneof=academic office general"`
	TargetDesc  string                `json:"targetDesc" validate:"required,notblank,max=255"`
	Title       string                `json:"title" validate:"required,notblank,max=255"`
	Content     string                `json:"content" validate:"required,notblank,max=10000"`
	IsAnonymous bool                  `json:"isAnonymous"`
}

type ListFeedbackInput struct {
	Status     []models.FeedbackStatus `json:"status" validate:"omitempty,dive,oneof=pending processing resolved invalid"`
	TargetType models.FeedbackTarget   `json:"targetType" validate:"omitempty,oneof=academic office general"`
	Search     string                  `json:"search" validate:"max=100"`
	PageInput
}

type UpdateStatusInput struct {
	Status models.FeedbackStatus `json:"status" validate:"required,oneof=pending processing resolved invalid"`
	Note   *string               `json:"note" validate:"omitempty,max=500"`
}

type StatsInput struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}
