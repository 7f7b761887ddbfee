package router

import (
	"math/big"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	v1 "github.com/locey/NFTDrop/api/v1"
	"github.com/locey/NFTDrop/errcode"
	"github.com/locey/NFTDrop/service/svc"
	"github.com/locey/NFTDrop/xhttp"
)

func NewRouter(svcCtx *svc.ServerCtx) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	api := r.Group("/api/v1/drop")
	{
		api.POST("/claim", v1.Claim(svcCtx))
		api.POST("/verify", v1.VerifyClaim(svcCtx))
		api.GET("/conditions", v1.GetClaimConditions(svcCtx))
		api.GET("/conditions/active", v1.GetActiveCondition(svcCtx))
		api.GET("/conditions/:id", v1.GetConditionById(svcCtx))
		api.GET("/claim-timestamp", v1.GetClaimTimestamp(svcCtx))
		api.GET("/allowlist/proof", v1.GetAllowlistProof(svcCtx))
		api.GET("/records", v1.GetClaimRecords(svcCtx))
	}

	admin := r.Group("/api/v1/drop/admin", AdminAuth(svcCtx.C.Api.AdminKey))
	{
		admin.POST("/conditions", v1.SetClaimConditions(svcCtx))
		admin.POST("/allowlist", v1.SetAllowlist(svcCtx))
	}

	return r
}

// AdminAuth 管理接口鉴权
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			xhttp.Error(c, errcode.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// registerValidators 注册wei金额字符串校验，非负十进制整数
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("wei", func(fl validator.FieldLevel) bool {
		n, ok := new(big.Int).SetString(fl.Field().String(), 10)
		return ok && n.Sign() >= 0
	})
}
