package errcode

import "fmt"

type Err struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Err) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

func NewErr(code int, msg string) *Err {
	return &Err{Code: code, Msg: msg}
}

const customErrCode = 10003

// NewCustomErr 业务自定义错误
func NewCustomErr(msg string) *Err {
	return NewErr(customErrCode, msg)
}

var (
	NoErr           = NewErr(200, "successful")
	ErrUnexpected   = NewErr(10000, "service busy, please try again later")
	ErrParam        = NewErr(10001, "parameter error")
	ErrUnauthorized = NewErr(10002, "unauthorized")
	ErrNotFound     = NewErr(10004, "record not found")
)
