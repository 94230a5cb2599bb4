package action

import "net/http"

// HTTPStatus maps a result code of any domain to the transport status.
func HTTPStatus(code string) int {
	switch code {
	case "UNAUTHORIZED":
		return http.StatusUnauthorized
	case "FORBIDDEN":
		return http.StatusForbidden
	case "USER_NOT_FOUND", "GROUP_NOT_FOUND", "MEMBER_NOT_FOUND", "POST_NOT_FOUND", "FEEDBACK_NOT_FOUND":
		return http.StatusNotFound
	case "EMAIL_EXISTS", "SLUG_EXISTS", "ALREADY_EXISTS", "ALREADY_SUBMIT",
		"LAST_ADMIN", "PIN_LIMIT_REACHED", "INVALID_STATUS":
		return http.StatusConflict
	case "INVALID_INPUT", "INVALID_PASSWORD":
		return http.StatusBadRequest
	case "SERVER_ERROR":
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
