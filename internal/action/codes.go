package action

import "strings"

func succeeded(code string) bool { return strings.HasSuffix(code, "_SUCCESS") }

type AuthCode string

const (
	AuthGetSuccess      AuthCode = "GET_SUCCESS"
	AuthLoginSuccess    AuthCode = "LOGIN_SUCCESS"
	AuthSignupSuccess   AuthCode = "SIGNUP_SUCCESS"
	AuthAutoLogin       AuthCode = "AUTO_LOGIN"
	AuthLogoutSuccess   AuthCode = "LOGOUT_SUCCESS"
	AuthEmailExists     AuthCode = "EMAIL_EXISTS"
	AuthUserNotFound    AuthCode = "USER_NOT_FOUND"
	AuthUnauthorized    AuthCode = "UNAUTHORIZED"
	AuthInvalidPassword AuthCode = "INVALID_PASSWORD"
	AuthForbidden       AuthCode = "FORBIDDEN"
	AuthInvalidInput    AuthCode = "INVALID_INPUT"
	AuthServerError     AuthCode = "SERVER_ERROR"
)

var authMessages = map[AuthCode]string{
	AuthGetSuccess:      "Session loaded",
	AuthLoginSuccess:    "Logged in",
	AuthSignupSuccess:   "Account created",
	AuthAutoLogin:       "Account already exists, logged in",
	AuthLogoutSuccess:   "Logged out",
	AuthEmailExists:     "Email is already registered",
	AuthUserNotFound:    "User not found",
	AuthUnauthorized:    "Please log in first",
	AuthInvalidPassword: "Invalid password",
	AuthForbidden:       "Account is disabled",
	AuthInvalidInput:    "Invalid input",
	AuthServerError:     "Server error, please try again later",
}

func (c AuthCode) Message() string { return authMessages[c] }

func (c AuthCode) Succeeded() bool { return succeeded(string(c)) || c == AuthAutoLogin }

type GroupCode string

const (
	GroupGetSuccess     GroupCode = "GET_SUCCESS"
	GroupCreateSuccess  GroupCode = "CREATE_SUCCESS"
	GroupUpdateSuccess  GroupCode = "UPDATE_SUCCESS"
	GroupDeleteSuccess  GroupCode = "DELETE_SUCCESS"
	GroupApproveSuccess GroupCode = "APPROVE_SUCCESS"
	GroupRejectSuccess  GroupCode = "REJECT_SUCCESS"
	GroupSlugExists     GroupCode = "SLUG_EXISTS"
	GroupNotFound       GroupCode = "GROUP_NOT_FOUND"
	GroupUnauthorized   GroupCode = "UNAUTHORIZED"
	GroupForbidden      GroupCode = "FORBIDDEN"
	GroupInvalidStatus  GroupCode = "INVALID_STATUS"
	GroupInvalidInput   GroupCode = "INVALID_INPUT"
	GroupServerError    GroupCode = "SERVER_ERROR"
)

var groupMessages = map[GroupCode]string{
	GroupGetSuccess:     "OK",
	GroupCreateSuccess:  "Group submitted for review",
	GroupUpdateSuccess:  "Group updated",
	GroupDeleteSuccess:  "Group deleted",
	GroupApproveSuccess: "Group approved",
	GroupRejectSuccess:  "Group rejected",
	GroupSlugExists:     "Slug is already taken",
	GroupNotFound:       "Group not found",
	GroupUnauthorized:   "Please log in first",
	GroupForbidden:      "You do not have permission for this group",
	GroupInvalidStatus:  "Group is already reviewed",
	GroupInvalidInput:   "Invalid input",
	GroupServerError:    "Server error, please try again later",
}

func (c GroupCode) Message() string { return groupMessages[c] }

func (c GroupCode) Succeeded() bool { return succeeded(string(c)) }

type MemberCode string

const (
	MemberGetSuccess     MemberCode = "GET_SUCCESS"
	MemberJoinSuccess    MemberCode = "JOIN_SUCCESS"
	MemberJoinRequested  MemberCode = "JOIN_REQUESTED"
	MemberLeaveSuccess   MemberCode = "LEAVE_SUCCESS"
	MemberUpdateSuccess  MemberCode = "UPDATE_SUCCESS"
	MemberDeleteSuccess  MemberCode = "DELETE_SUCCESS"
	MemberApproveSuccess MemberCode = "APPROVE_SUCCESS"
	MemberRejectSuccess  MemberCode = "REJECT_SUCCESS"
	MemberGroupNotFound  MemberCode = "GROUP_NOT_FOUND"
	MemberNotFound       MemberCode = "MEMBER_NOT_FOUND"
	MemberUnauthorized   MemberCode = "UNAUTHORIZED"
	MemberLastAdmin      MemberCode = "LAST_ADMIN"
	MemberForbidden      MemberCode = "FORBIDDEN"
	MemberInvalidStatus  MemberCode = "INVALID_STATUS"
	MemberAlreadyExists  MemberCode = "ALREADY_EXISTS"
	MemberAlreadySubmit  MemberCode = "ALREADY_SUBMIT"
	MemberInvalidInput   MemberCode = "INVALID_INPUT"
	MemberServerError    MemberCode = "SERVER_ERROR"
)

var memberMessages = map[MemberCode]string{
	MemberGetSuccess:     "OK",
	MemberJoinSuccess:    "Joined the group",
	MemberJoinRequested:  "Join request sent",
	MemberLeaveSuccess:   "Left the group",
	MemberUpdateSuccess:  "Member role updated",
	MemberDeleteSuccess:  "Member removed",
	MemberApproveSuccess: "Member approved",
	MemberRejectSuccess:  "Member rejected",
	MemberGroupNotFound:  "Group not found",
	MemberNotFound:       "Member not found",
	MemberUnauthorized:   "Please log in first",
	MemberLastAdmin:      "The group must keep at least one admin",
	MemberForbidden:      "Only group admins can do this",
	MemberInvalidStatus:  "Invalid membership status",
	MemberAlreadyExists:  "Already a member",
	MemberAlreadySubmit:  "Join request already submitted",
	MemberInvalidInput:   "Invalid input",
	MemberServerError:    "Server error, please try again later",
}

func (c MemberCode) Message() string { return memberMessages[c] }

func (c MemberCode) Succeeded() bool { return succeeded(string(c)) || c == MemberJoinRequested }

type PostCode string

const (
	PostCreateSuccess   PostCode = "CREATE_SUCCESS"
	PostGetSuccess      PostCode = "GET_SUCCESS"
	PostPinSuccess      PostCode = "PIN_SUCCESS"
	PostUnpinSuccess    PostCode = "UNPIN_SUCCESS"
	PostUpdateSuccess   PostCode = "UPDATE_SUCCESS"
	PostDeleteSuccess   PostCode = "DELETE_SUCCESS"
	PostGroupNotFound   PostCode = "GROUP_NOT_FOUND"
	PostNotFound        PostCode = "POST_NOT_FOUND"
	PostUnauthorized    PostCode = "UNAUTHORIZED"
	PostPinLimitReached PostCode = "PIN_LIMIT_REACHED"
	PostForbidden       PostCode = "FORBIDDEN"
	PostInvalidInput    PostCode = "INVALID_INPUT"
	PostServerError     PostCode = "SERVER_ERROR"
)

var postMessages = map[PostCode]string{
	PostCreateSuccess:   "Post published",
	PostGetSuccess:      "OK",
	PostPinSuccess:      "Post pinned",
	PostUnpinSuccess:    "Post unpinned",
	PostUpdateSuccess:   "Post updated",
	PostDeleteSuccess:   "Post deleted",
	PostGroupNotFound:   "Group not found",
	PostNotFound:        "Post not found",
	PostUnauthorized:    "Please log in first",
	PostPinLimitReached: "Maximum 3 pinned posts allowed",
	PostForbidden:       "You do not have permission for this post",
	PostInvalidInput:    "Invalid input",
	PostServerError:     "Server error, please try again later",
}

func (c PostCode) Message() string { return postMessages[c] }

func (c PostCode) Succeeded() bool { return succeeded(string(c)) }

type FeedbackCode string

const (
	FeedbackGetSuccess    FeedbackCode = "GET_SUCCESS"
	FeedbackCreateSuccess FeedbackCode = "CREATE_SUCCESS"
	FeedbackUpdateSuccess FeedbackCode = "UPDATE_SUCCESS"
	FeedbackDeleteSuccess FeedbackCode = "DELETE_SUCCESS"
	FeedbackExportSuccess FeedbackCode = "EXPORT_SUCCESS"
	FeedbackNotFound      FeedbackCode = "FEEDBACK_NOT_FOUND"
	FeedbackUnauthorized  FeedbackCode = "UNAUTHORIZED"
	FeedbackForbidden     FeedbackCode = "FORBIDDEN"
	FeedbackInvalidInput  FeedbackCode = "INVALID_INPUT"
	FeedbackServerError   FeedbackCode = "SERVER_ERROR"
)

var feedbackMessages = map[FeedbackCode]string{
	FeedbackGetSuccess:    "OK",
	FeedbackCreateSuccess: "Feedback submitted",
	FeedbackUpdateSuccess: "Feedback status updated",
	FeedbackDeleteSuccess: "Feedback deleted",
	FeedbackExportSuccess: "Export ready",
	FeedbackNotFound:      "Feedback not found",
	FeedbackUnauthorized:  "Please log in first",
	FeedbackForbidden:     "You do not have permission for this feedback",
	FeedbackInvalidInput:  "Invalid input",
	FeedbackServerError:   "Server error, please try again later",
}

func (c FeedbackCode) Message() string { return feedbackMessages[c] }

func (c FeedbackCode) Succeeded() bool { return succeeded(string(c)) }
