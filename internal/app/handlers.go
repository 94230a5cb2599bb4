package app

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/contract"
	"github.com/Spok95/campus-community/internal/models"
)

// auth

func (a *api) currentUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Auth.CurrentUser(r.Context(), a.session(w, r)))
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var in contract.LoginInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.AuthCode](w, err)
		return
	}
	writeJSON(w, a.Auth.Login(r.Context(), a.session(w, r), in))
}

func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var in contract.SignupInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.AuthCode](w, err)
		return
	}
	release := a.signups.lock(in.Email)
	defer release()
	writeJSON(w, a.Auth.Signup(r.Context(), a.session(w, r), in))
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Auth.Logout(r.Context(), a.session(w, r)))
}

// groups

func (a *api) listApprovedGroups(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, a.Groups.ListApproved(r.Context(), contract.ListGroupsInput{
		Category:  models.GroupCategory(q.Get("category")),
		Search:    q.Get("search"),
		PageInput: p,
	}))
}

func (a *api) createGroup(w http.ResponseWriter, r *http.Request) {
	var in contract.CreateGroupInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	writeJSON(w, a.Groups.Create(r.Context(), a.session(w, r), in))
}

func (a *api) listPendingGroups(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	writeJSON(w, a.Groups.ListPending(r.Context(), a.session(w, r), p))
}

func (a *api) listMyGroups(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	in := contract.ListMyGroupsInput{Status: models.MemberStatus(r.URL.Query().Get("status")), PageInput: p}
	writeJSON(w, a.Groups.ListMine(r.Context(), a.session(w, r), in))
}

func (a *api) getGroupBySlug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.GetBySlug(r.Context(), a.session(w, r), chi.URLParam(r, "slug")))
}

func (a *api) getGroup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.GetByID(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) updateGroup(w http.ResponseWriter, r *http.Request) {
	var in contract.UpdateGroupInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	writeJSON(w, a.Groups.Update(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) deleteGroup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.Delete(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) reviewGroup(w http.ResponseWriter, r *http.Request) {
	var in contract.ReviewGroupInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.GroupCode](w, err)
		return
	}
	writeJSON(w, a.Groups.ApproveGroup(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

// members

func (a *api) joinGroup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.JoinGroup(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) leaveGroup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.LeaveGroup(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) listMembers(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.MemberCode](w, err)
		return
	}
	q := r.URL.Query()
	in := contract.ListMembersInput{
		Role:      models.MemberRole(q.Get("role")),
		Status:    models.MemberStatus(q.Get("status")),
		PageInput: p,
	}
	writeJSON(w, a.Groups.GetMembers(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var in contract.UpdateMemberRoleInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.MemberCode](w, err)
		return
	}
	writeJSON(w, a.Groups.UpdateMemberRole(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) removeMember(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.RemoveMember(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) approveMember(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.ApproveMember(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) rejectMember(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Groups.RejectMember(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

// posts

func (a *api) listPosts(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	in := contract.ListPostsInput{Type: models.PostType(r.URL.Query().Get("type")), PageInput: p}
	writeJSON(w, a.Posts.ListByGroup(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "pageSize")
	if err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	writeJSON(w, a.Posts.GetAnnouncements(r.Context(), a.session(w, r), chi.URLParam(r, "id"), size))
}

func (a *api) createPost(w http.ResponseWriter, r *http.Request) {
	var in contract.CreatePostInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	writeJSON(w, a.Posts.Create(r.Context(), a.session(w, r), in))
}

func (a *api) listPostsByAuthor(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	writeJSON(w, a.Posts.ListByAuthor(r.Context(), a.session(w, r), chi.URLParam(r, "userID"), p))
}

func (a *api) getPost(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Posts.GetByID(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) updatePost(w http.ResponseWriter, r *http.Request) {
	var in contract.UpdatePostInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	writeJSON(w, a.Posts.Update(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) deletePost(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Posts.Delete(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) togglePin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsPinned bool `json:"isPinned"`
	}
	if err := decode(w, r, &in); err != nil {
		badRequest[action.PostCode](w, err)
		return
	}
	writeJSON(w, a.Posts.TogglePin(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in.IsPinned))
}

// feedback

func (a *api) feedbackFilter(r *http.Request) (contract.ListFeedbackInput, error) {
	p, err := pageInput(r)
	if err != nil {
		return contract.ListFeedbackInput{}, err
	}
	in := contract.ListFeedbackInput{
		TargetType: models.FeedbackTarget(r.URL.Query().Get("targetType")),
		Search:     r.URL.Query().Get("search"),
		PageInput:  p,
	}
	for _, s := range queryList(r, "status") {
		in.Status = append(in.Status, models.FeedbackStatus(s))
	}
	return in, nil
}

func (a *api) listFeedback(w http.ResponseWriter, r *http.Request) {
	in, err := a.feedbackFilter(r)
	if err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	writeJSON(w, a.Feedback.List(r.Context(), a.session(w, r), in))
}

func (a *api) createFeedback(w http.ResponseWriter, r *http.Request) {
	var in contract.CreateFeedbackInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	writeJSON(w, a.Feedback.Create(r.Context(), a.session(w, r), in))
}

func (a *api) feedbackStats(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "startDate", a.Loc)
	if err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	to, err := queryEndDate(r, "endDate", a.Loc)
	if err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	writeJSON(w, a.Feedback.GetStats(r.Context(), a.session(w, r), contract.StatsInput{StartDate: from, EndDate: to}))
}

// exportFeedback streams the workbook on success and the envelope otherwise.
func (a *api) exportFeedback(w http.ResponseWriter, r *http.Request) {
	in, err := a.feedbackFilter(r)
	if err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	res := a.Feedback.Export(r.Context(), a.session(w, r), in)
	if !res.Success {
		writeJSON(w, res)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(res.Data.Filename)))
	_, _ = w.Write(res.Data.Content)
}

func (a *api) getFeedback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Feedback.GetByID(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) deleteFeedback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Feedback.Delete(r.Context(), a.session(w, r), chi.URLParam(r, "id")))
}

func (a *api) updateFeedbackStatus(w http.ResponseWriter, r *http.Request) {
	var in contract.UpdateStatusInput
	if err := decode(w, r, &in); err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	writeJSON(w, a.Feedback.UpdateStatus(r.Context(), a.session(w, r), chi.URLParam(r, "id"), in))
}

func (a *api) feedbackLogs(w http.ResponseWriter, r *http.Request) {
	p, err := pageInput(r)
	if err != nil {
		badRequest[action.FeedbackCode](w, err)
		return
	}
	writeJSON(w, a.Feedback.GetStatusLogs(r.Context(), a.session(w, r), chi.URLParam(r, "id"), p))
}
