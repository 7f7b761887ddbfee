package v1

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/locey/NFTDrop/errcode"
	"github.com/locey/NFTDrop/service/svc"
	service "github.com/locey/NFTDrop/service/v1"
	types "github.com/locey/NFTDrop/types/v1"
	"github.com/locey/NFTDrop/xhttp"
)

// Claim 领取mint额度
func Claim(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.ClaimRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.Claim(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// VerifyClaim 领取前的只读预检
func VerifyClaim(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.VerifyRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.VerifyClaim(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// SetClaimConditions 安装领取条件列表（管理接口）
func SetClaimConditions(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.SetConditionsRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.SetClaimConditions(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetClaimConditions 当前条件列表
func GetClaimConditions(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := service.GetClaimConditions(c.Request.Context(), svcCtx)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetActiveCondition 当前生效阶段
func GetActiveCondition(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := service.GetActiveCondition(c.Request.Context(), svcCtx)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetConditionById 按阶段id查询
func GetConditionById(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		phaseId, err := strconv.ParseInt(c.Params.ByName("id"), 10, 64)
		if err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.GetConditionById(c.Request.Context(), svcCtx, phaseId)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetClaimTimestamp 查询钱包冷却时间
func GetClaimTimestamp(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.Query("wallet")
		if wallet == "" {
			xhttp.Error(c, errcode.NewCustomErr("wallet is null"))
			return
		}
		phaseId, err := strconv.ParseInt(c.Query("phase_id"), 10, 64)
		if err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.GetClaimTimestamp(c.Request.Context(), svcCtx, phaseId, wallet)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// SetAllowlist 上传某阶段的白名单（管理接口）
func SetAllowlist(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.SetAllowlistRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.SetAllowlist(c.Request.Context(), svcCtx, req)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetAllowlistProof 查询钱包的白名单证明
func GetAllowlistProof(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.Query("wallet")
		if wallet == "" {
			xhttp.Error(c, errcode.NewCustomErr("wallet is null"))
			return
		}
		phaseId, err := strconv.ParseInt(c.Query("phase_id"), 10, 64)
		if err != nil {
			xhttp.Error(c, errcode.ErrParam)
			return
		}

		res, err := service.GetAllowlistProof(c.Request.Context(), svcCtx, phaseId, wallet)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}

// GetClaimRecords 分页查询领取流水
func GetClaimRecords(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		phaseId := int64(-1)
		if v := c.Query("phase_id"); v != "" {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				xhttp.Error(c, errcode.ErrParam)
				return
			}
			phaseId = parsed
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
		if page < 1 {
			page = 1
		}
		if pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}

		res, err := service.GetClaimRecords(c.Request.Context(), svcCtx, phaseId, c.Query("wallet"), page, pageSize)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		xhttp.OkJson(c, res)
	}
}
