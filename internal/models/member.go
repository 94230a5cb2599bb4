package models

import "time"

type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

func (r MemberRole) Valid() bool { return r == MemberRoleMember || r == MemberRoleAdmin }

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberApproved MemberStatus = "approved"
	MemberRejected MemberStatus = "rejected"
)

func (s MemberStatus) Valid() bool {
	return s == MemberPending || s == MemberApproved || s == MemberRejected
}

type GroupMember struct {
	ID        string       `db:"id" json:"id"`
	GroupID   string       `db:"group_id" json:"groupId"`
	UserID    string       `db:"user_id" json:"userId"`
	Role      MemberRole   `db:"role" json:"role"`
	Status    MemberStatus `db:"status" json:"status"`
	JoinedAt  *time.Time   `db:"joined_at" json:"joinedAt"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time    `db:"updated_at" json:"updatedAt"`
}

// IsApprovedAdmin reports whether the membership counts toward the last-admin invariant.
func (m *GroupMember) IsApprovedAdmin() bool {
	return m != nil && m.Role == MemberRoleAdmin && m.Status == MemberApproved
}

type MemberWithUser struct {
	GroupMember
	User UserLite `json:"user"`
}

type MemberWithGroup struct {
	GroupMember
	Group GroupWithCreator `json:"group"`
}
