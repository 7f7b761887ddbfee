package xhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/locey/NFTDrop/errcode"
)

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func OkJson(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code: errcode.NoErr.Code,
		Msg:  errcode.NoErr.Msg,
		Data: data,
	})
}

func Error(c *gin.Context, err error) {
	e := new(errcode.Err)
	if !errors.As(err, &e) {
		e = errcode.ErrUnexpected
	}
	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}
