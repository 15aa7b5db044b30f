package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 返回同一错误码、不同提示信息的副本
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Is 按错误码比较, 使 errors.Is 对 WithMessage 的结果同样成立
func (e Errno) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return e.Code == t.Code
	case *Errno:
		return t != nil && e.Code == t.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		var e Errno
		if errors.As(err, &e) {
			return e.Code, e.Message
		}
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrNodeUnavailable  = Errno{Code: 10005, Message: "Ledger node unavailable"}
)

// Business Errors (20000+)
var (
	ErrInvalidAddress   = Errno{Code: 20101, Message: "Invalid address"}
	ErrSubmissionFailed = Errno{Code: 20102, Message: "Something went wrong, try again."}
	ErrProductNotFound  = Errno{Code: 20201, Message: "Product does not exists."}
	ErrNotSubscribed    = Errno{Code: 20301, Message: "Address is not subscribed"}
)
