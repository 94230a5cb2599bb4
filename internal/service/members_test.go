package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/models"
)

func TestJoinPublicGroupApprovesImmediately(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, f.login(t, models.Student), "chess", true)
	student := f.login(t, models.Student)

	res := f.groups.JoinGroup(context.Background(), student, g.ID)
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, action.MemberJoinSuccess, res.State.Code)
	assert.Equal(t, models.MemberApproved, res.Data.Status)
	assert.Equal(t, models.MemberRoleMember, res.Data.Role)
	assert.NotNil(t, res.Data.JoinedAt)

	again := f.groups.JoinGroup(context.Background(), student, g.ID)
	assert.Equal(t, action.MemberAlreadyExists, again.State.Code)
}

func TestJoinPrivateGroupQueuesRequest(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "secret", false)
	student := f.login(t, models.Student)
	ctx := context.Background()

	res := f.groups.JoinGroup(ctx, student, g.ID)
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, action.MemberJoinRequested, res.State.Code)
	assert.Equal(t, models.MemberPending, res.Data.Status)
	assert.Nil(t, res.Data.JoinedAt)
	first := res.Data.ID

	assert.Equal(t, action.MemberAlreadySubmit, f.groups.JoinGroup(ctx, student, g.ID).State.Code)

	rej := f.groups.RejectMember(ctx, owner, first)
	require.True(t, rej.Success, rej.State.Message)
	assert.Equal(t, models.MemberRejected, rej.Data.Status)

	retry := f.groups.JoinGroup(ctx, student, g.ID)
	require.True(t, retry.Success, retry.State.Message)
	assert.Equal(t, first, retry.Data.ID, "the membership row is reused")
	assert.Equal(t, models.MemberPending, retry.Data.Status)

	n, err := f.repo.CountMembers(ctx, db.MemberFilter{GroupID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok := f.groups.ApproveMember(ctx, owner, first)
	require.True(t, ok.Success, ok.State.Message)
	assert.Equal(t, models.MemberApproved, ok.Data.Status)
	assert.NotNil(t, ok.Data.JoinedAt)

	assert.Equal(t, action.MemberInvalidStatus, f.groups.ApproveMember(ctx, owner, first).State.Code)
}

func TestJoinRequiresApprovedGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, f.login(t, models.Student), "chess", true)

	res := f.groups.JoinGroup(context.Background(), f.login(t, models.Student), g.ID)
	assert.Equal(t, action.MemberInvalidStatus, res.State.Code)

	res = f.groups.JoinGroup(context.Background(), f.login(t, models.Student), "missing")
	assert.Equal(t, action.MemberGroupNotFound, res.State.Code)
}

func TestSoleAdminCannotLeave(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	ctx := context.Background()

	res := f.groups.LeaveGroup(ctx, owner, g.ID)
	assert.Equal(t, action.MemberLastAdmin, res.State.Code)
	assert.True(t, f.membership(t, g.ID, owner).IsApprovedAdmin())

	other := f.login(t, models.Student)
	m := f.join(t, other, g.ID)
	promote := f.groups.UpdateMemberRole(ctx, owner, m.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleAdmin})
	require.True(t, promote.Success, promote.State.Message)

	res = f.groups.LeaveGroup(ctx, owner, g.ID)
	require.True(t, res.Success, res.State.Message)

	assert.Equal(t, action.MemberNotFound, f.groups.LeaveGroup(ctx, owner, g.ID).State.Code)
}

func TestLastAdminCannotBeDemotedOrRemoved(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	admin := f.membership(t, g.ID, owner)
	ctx := context.Background()

	res := f.groups.UpdateMemberRole(ctx, owner, admin.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleMember})
	assert.Equal(t, action.MemberLastAdmin, res.State.Code)

	res = f.groups.RemoveMember(ctx, owner, admin.ID)
	assert.Equal(t, action.MemberLastAdmin, res.State.Code)
	assert.True(t, f.membership(t, g.ID, owner).IsApprovedAdmin())
}

func TestMemberManagementRequiresGroupAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	a := f.login(t, models.Student)
	b := f.login(t, models.Student)
	ma := f.join(t, a, g.ID)
	mb := f.join(t, b, g.ID)
	ctx := context.Background()

	res := f.groups.RemoveMember(ctx, a, mb.ID)
	assert.Equal(t, action.MemberForbidden, res.State.Code)

	res = f.groups.UpdateMemberRole(ctx, a, ma.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleAdmin})
	assert.Equal(t, action.MemberForbidden, res.State.Code)

	res = f.groups.RemoveMember(ctx, owner, mb.ID)
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, mb.ID, res.Data.ID)

	assert.Equal(t, action.MemberNotFound, f.groups.RemoveMember(ctx, owner, mb.ID).State.Code)
	assert.Equal(t, action.MemberInvalidInput, f.groups.UpdateMemberRole(ctx, owner, ma.ID, contract.UpdateMemberRoleInput{Role: "owner"}).State.Code)
}

// Two admins demoting each other at once must leave exactly one admin behind.
func TestConcurrentDemotionKeepsAnAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	other := f.login(t, models.Student)
	m := f.join(t, other, g.ID)
	ctx := context.Background()
	require.True(t, f.groups.UpdateMemberRole(ctx, owner, m.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleAdmin}).Success)
	ownerMember := f.membership(t, g.ID, owner)

	var (
		wg    sync.WaitGroup
		codes [2]action.MemberCode
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		codes[0] = f.groups.UpdateMemberRole(ctx, owner, m.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleMember}).State.Code
	}()
	go func() {
		defer wg.Done()
		codes[1] = f.groups.UpdateMemberRole(ctx, other, ownerMember.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleMember}).State.Code
	}()
	wg.Wait()

	assert.ElementsMatch(t, []action.MemberCode{action.MemberUpdateSuccess, action.MemberForbidden}, codes[:])

	admins, err := f.repo.CountMembers(ctx, db.MemberFilter{GroupID: g.ID, Role: models.MemberRoleAdmin, Status: models.MemberApproved})
	require.NoError(t, err)
	assert.Equal(t, 1, admins)
}

func TestGetMembers(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "secret", false)
	applicant := f.login(t, models.Student)
	require.True(t, f.groups.JoinGroup(context.Background(), applicant, g.ID).Success)
	ctx := context.Background()

	res := f.groups.GetMembers(ctx, applicant, g.ID, contract.ListMembersInput{})
	assert.Equal(t, action.MemberForbidden, res.State.Code)

	res = f.groups.GetMembers(ctx, owner, g.ID, contract.ListMembersInput{})
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, 1, res.Data.Total)
	assert.Equal(t, 50, res.Data.PageSize)
	assert.Equal(t, models.MemberRoleAdmin, res.Data.Items[0].Role)

	pending := f.groups.GetMembers(ctx, owner, g.ID, contract.ListMembersInput{Status: models.MemberPending})
	require.True(t, pending.Success, pending.State.Message)
	require.Len(t, pending.Data.Items, 1)
	assert.Equal(t, userID(t, applicant), pending.Data.Items[0].UserID)

	assert.True(t, f.groups.GetMembers(ctx, f.login(t, models.Moderator), g.ID, contract.ListMembersInput{}).Success)
	assert.Equal(t, action.MemberUnauthorized, f.groups.GetMembers(ctx, nil, g.ID, contract.ListMembersInput{}).State.Code)
}

func TestGetMembersPendingListRestrictedToManagers(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	member := f.login(t, models.Student)
	f.join(t, member, g.ID)

	res := f.groups.GetMembers(context.Background(), member, g.ID, contract.ListMembersInput{Status: models.MemberPending})
	assert.Equal(t, action.MemberForbidden, res.State.Code)

	res = f.groups.GetMembers(context.Background(), member, g.ID, contract.ListMembersInput{})
	require.True(t, res.Success, res.State.Message)
	assert.Equal(t, 2, res.Data.Total)
	assert.Equal(t, models.MemberRoleAdmin, res.Data.Items[0].Role, "admins first")
}

func TestConcurrentLeaveKeepsAnAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, models.Student)
	g := f.approvedGroup(t, owner, "chess", true)
	other := f.login(t, models.Student)
	m := f.join(t, other, g.ID)
	ctx := context.Background()
	require.True(t, f.groups.UpdateMemberRole(ctx, owner, m.ID, contract.UpdateMemberRoleInput{Role: models.MemberRoleAdmin}).Success)

	var (
		wg    sync.WaitGroup
		codes [2]action.MemberCode
	)
	for i, sess := range []*auth.MemorySession{owner, other} {
		i, sess := i, sess
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = f.groups.LeaveGroup(ctx, sess, g.ID).State.Code
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []action.MemberCode{action.MemberLeaveSuccess, action.MemberLastAdmin}, codes[:])
	admins, err := f.repo.CountMembers(ctx, db.MemberFilter{GroupID: g.ID, Role: models.MemberRoleAdmin, Status: models.MemberApproved})
	require.NoError(t, err)
	assert.Equal(t, 1, admins)
}
