package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	xcommon "github.com/locey/NFTDrop/common"
	"github.com/locey/NFTDrop/engine"
	"github.com/locey/NFTDrop/logger/xzap"
	"github.com/locey/NFTDrop/service/svc"
	"github.com/locey/NFTDrop/stores/gdb/drop"
	types "github.com/locey/NFTDrop/types/v1"
)

// SetClaimConditions 整体安装领取条件列表并持久化
func SetClaimConditions(ctx context.Context, s *svc.ServerCtx, req *types.SetConditionsRequest) (*types.SetConditionsResponse, error) {
	conds := make([]*engine.ClaimCondition, 0, len(req.Conditions))
	for _, p := range req.Conditions {
		price, err := parseWei(p.PricePerToken)
		if err != nil {
			return nil, errors.Wrap(err, "price_per_token")
		}
		var root common.Hash
		if p.MerkleRoot != "" {
			root = common.HexToHash(p.MerkleRoot)
		}
		conds = append(conds, &engine.ClaimCondition{
			StartTimestamp:         p.StartTimestamp,
			MaxClaimableSupply:     p.MaxClaimableSupply,
			QuantityLimitPerWallet: p.QuantityLimitPerWallet,
			WaitTimeBetweenClaims:  p.WaitTimeBetweenClaims,
			MerkleRoot:             root,
			PricePerToken:          price,
			Currency:               common.HexToAddress(p.Currency),
		})
	}

	if err := s.Engine.SetClaimConditions(conds, req.ResetEligibility); err != nil {
		return nil, err
	}

	// 引擎里非重置安装会继承旧阶段的supplyClaimed，持久化用引擎快照
	base := s.Engine.PhaseIdBase()
	snapshot := s.Engine.Conditions()
	rows := make([]*drop.DropClaimCondition, 0, len(snapshot))
	phaseIds := make([]int64, 0, len(snapshot))
	for i, c := range snapshot {
		phaseId := base + int64(i)
		rows = append(rows, svc.ConditionToModel(phaseId, i, c))
		phaseIds = append(phaseIds, phaseId)
	}
	if err := s.Dao.SaveClaimConditions(ctx, base, rows); err != nil {
		return nil, errors.Wrap(err, "save claim conditions")
	}

	xzap.WithContext(ctx).Info("claim conditions installed",
		zap.Int64("phase_id_base", base),
		zap.Int("count", len(rows)),
		zap.Bool("reset_eligibility", req.ResetEligibility))

	return &types.SetConditionsResponse{
		PhaseIdBase: base,
		PhaseIds:    phaseIds,
	}, nil
}

// GetClaimConditions 当前条件列表
func GetClaimConditions(ctx context.Context, s *svc.ServerCtx) ([]types.ConditionView, error) {
	base := s.Engine.PhaseIdBase()
	views := make([]types.ConditionView, 0)
	for i, c := range s.Engine.Conditions() {
		views = append(views, conditionView(base+int64(i), c))
	}
	return views, nil
}

// GetActiveCondition 当前生效的阶段
func GetActiveCondition(ctx context.Context, s *svc.ServerCtx) (*types.ActiveConditionResponse, error) {
	phaseId, err := s.Engine.ActiveConditionId()
	if err != nil {
		return nil, err
	}
	cond, err := s.Engine.ConditionById(phaseId)
	if err != nil {
		return nil, err
	}
	view := conditionView(phaseId, cond)
	return &types.ActiveConditionResponse{
		PhaseId:   phaseId,
		Condition: &view,
	}, nil
}

func GetConditionById(ctx context.Context, s *svc.ServerCtx, phaseId int64) (*types.ConditionView, error) {
	cond, err := s.Engine.ConditionById(phaseId)
	if err != nil {
		return nil, err
	}
	view := conditionView(phaseId, cond)
	return &view, nil
}

// GetClaimTimestamp 钱包在某阶段的领取时间信息
func GetClaimTimestamp(ctx context.Context, s *svc.ServerCtx, phaseId int64, wallet string) (*types.ClaimTimestampResponse, error) {
	addr, err := xcommon.UnifyAddress(wallet)
	if err != nil {
		return nil, err
	}
	last, next, err := s.Engine.ClaimTimestamps(phaseId, common.HexToAddress(addr))
	if err != nil {
		return nil, err
	}
	return &types.ClaimTimestampResponse{
		LastClaimAt:      last,
		NextValidClaimAt: next,
	}, nil
}

func conditionView(phaseId int64, c *engine.ClaimCondition) types.ConditionView {
	return types.ConditionView{
		PhaseId:                phaseId,
		StartTimestamp:         c.StartTimestamp,
		MaxClaimableSupply:     c.MaxClaimableSupply,
		SupplyClaimed:          c.SupplyClaimed,
		QuantityLimitPerWallet: c.QuantityLimitPerWallet,
		WaitTimeBetweenClaims:  c.WaitTimeBetweenClaims,
		MerkleRoot:             c.MerkleRoot.Hex(),
		PricePerToken:          c.PricePerToken.String(),
		PriceInEther:           decimal.NewFromBigInt(c.PricePerToken, -18).String(),
		Currency:               c.Currency.Hex(),
	}
}

// parseWei wei十进制字符串转big.Int，空串当0
func parseWei(v string) (*big.Int, error) {
	if v == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, errors.Errorf("invalid wei amount: %s", v)
	}
	return amount, nil
}
