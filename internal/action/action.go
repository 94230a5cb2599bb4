// Package action holds the response envelope shared by every service call:
// {success, data?, state: {code, message}}.
package action

// Code is a per-domain result code with a stable human message.
type Code interface {
	~string
	Message() string
	Succeeded() bool
}

type State[C Code] struct {
	Code    C      `json:"code"`
	Message string `json:"message"`
}

type Response[T any, C Code] struct {
	Success bool     `json:"success"`
	Data    *T       `json:"data,omitempty"`
	State   State[C] `json:"state"`
}

// CodeString lets transport code inspect the code without knowing C.
func (r Response[T, C]) CodeString() string { return string(r.State.Code) }

func OK[T any, C Code](data *T, code C) Response[T, C] {
	return Response[T, C]{Success: true, Data: data, State: State[C]{Code: code, Message: code.Message()}}
}

func Fail[T any, C Code](code C) Response[T, C] {
	return Response[T, C]{State: State[C]{Code: code, Message: code.Message()}}
}

// FailMsg overrides the default message, e.g. with a validation detail.
func FailMsg[T any, C Code](code C, msg string) Response[T, C] {
	if msg == "" {
		msg = code.Message()
	}
	return Response[T, C]{State: State[C]{Code: code, Message: msg}}
}

// Of builds the envelope for code; data is dropped on failure.
func Of[T any, C Code](data *T, code C) Response[T, C] {
	if code.Succeeded() {
		return OK(data, code)
	}
	return Fail[T](code)
}

// Empty is the payload of operations that return no data.
type Empty struct{}
