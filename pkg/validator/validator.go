package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init 让 gin 的校验错误使用 form / json 字段名, 提示信息与请求参数一致
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
	}
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid request parameters"
	}

	var errMsgs []string
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "hexadecimal":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be a hex string", field))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s failed on %s", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}
