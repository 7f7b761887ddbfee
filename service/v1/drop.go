package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	xcommon "github.com/locey/NFTDrop/common"
	"github.com/locey/NFTDrop/engine"
	"github.com/locey/NFTDrop/logger/xzap"
	"github.com/locey/NFTDrop/service/svc"
	"github.com/locey/NFTDrop/stores/gdb/drop"
	types "github.com/locey/NFTDrop/types/v1"
)

// Claim 领取入口
// 请求没带证明而当前阶段开了白名单时，自动用库里存的证明
func Claim(ctx context.Context, s *svc.ServerCtx, req *types.ClaimRequest) (*types.ClaimResponse, error) {
	claimer := common.HexToAddress(req.Claimer)

	price, err := parseWei(req.PricePerToken)
	if err != nil {
		return nil, errors.Wrap(err, "price_per_token")
	}
	attached, err := parseWei(req.AttachedValue)
	if err != nil {
		return nil, errors.Wrap(err, "attached_value")
	}

	proof, err := resolveProof(ctx, s, claimer, req.Proof, req.LeafIndex, req.MaxQuantity)
	if err != nil {
		return nil, err
	}

	var receiver common.Address
	if req.Receiver != "" {
		receiver = common.HexToAddress(req.Receiver)
	}

	res, err := s.Engine.Claim(ctx, &engine.ClaimRequest{
		Claimer:       claimer,
		Receiver:      receiver,
		Quantity:      req.Quantity,
		Currency:      common.HexToAddress(req.Currency),
		PricePerToken: price,
		AttachedValue: attached,
		Proof:         proof,
	})
	if err != nil {
		return nil, err
	}

	record := persistClaim(ctx, s, claimer, receiver, proof, res)

	return &types.ClaimResponse{
		RecordId:     record.ID,
		PhaseId:      res.PhaseId,
		FirstTokenId: res.FirstTokenId,
		Quantity:     res.Quantity,
		TxHash:       res.TxHash,
		ClaimedAt:    res.ClaimedAt,
	}, nil
}

// resolveProof 构造白名单证明：请求自带的优先，否则查库
func resolveProof(ctx context.Context, s *svc.ServerCtx, claimer common.Address, proofHex []string, leafIndex, maxQuantity uint64) (*engine.AllowlistProof, error) {
	if len(proofHex) > 0 {
		siblings, err := proofFromStrings(proofHex)
		if err != nil {
			return nil, err
		}
		return &engine.AllowlistProof{
			Proof:       siblings,
			LeafIndex:   leafIndex,
			MaxQuantity: maxQuantity,
		}, nil
	}

	phaseId, err := s.Engine.ActiveConditionId()
	if err != nil {
		// 没有生效阶段时让引擎照常返回ErrNotStarted
		return nil, nil
	}
	cond, err := s.Engine.ConditionById(phaseId)
	if err != nil || !cond.HasAllowlist() {
		return nil, nil
	}
	entry, err := s.Dao.GetAllowlistEntry(ctx, phaseId, claimer.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "load allowlist entry")
	}
	if entry == nil {
		return nil, nil
	}
	siblings, err := parseProofJSON(entry.Proof)
	if err != nil {
		return nil, err
	}
	return &engine.AllowlistProof{
		Proof:       siblings,
		LeafIndex:   entry.LeafIndex,
		MaxQuantity: entry.MaxQuantity,
	}, nil
}

// persistClaim 领取成功后的落库，协作方已经执行完，失败只记日志不回滚
func persistClaim(ctx context.Context, s *svc.ServerCtx, claimer, receiver common.Address, proof *engine.AllowlistProof, res *engine.ClaimResult) *drop.DropClaimRecord {
	logger := xzap.WithContext(ctx)

	if cond, err := s.Engine.ConditionById(res.PhaseId); err == nil {
		if err := s.Dao.UpdateConditionSupply(ctx, res.PhaseId, cond.SupplyClaimed); err != nil {
			logger.Error("update condition supply failed", zap.Error(err), zap.Int64("phase_id", res.PhaseId))
		}
	}

	leafIndex := int64(-1)
	if proof != nil && proof.MaxQuantity > 0 {
		leafIndex = int64(proof.LeafIndex)
	}
	if err := s.Dao.UpsertWalletClaim(ctx, &drop.DropWalletClaim{
		PhaseId:         res.PhaseId,
		Wallet:          claimer.Hex(),
		ClaimedQuantity: s.Engine.WalletClaimed(res.PhaseId, claimer),
		LastClaimAt:     res.ClaimedAt,
		LeafIndex:       leafIndex,
	}); err != nil {
		logger.Error("upsert wallet claim failed", zap.Error(err), zap.String("wallet", claimer.Hex()))
	}

	if receiver == (common.Address{}) {
		receiver = claimer
	}
	record := &drop.DropClaimRecord{
		PhaseId:      res.PhaseId,
		Claimer:      claimer.Hex(),
		Receiver:     receiver.Hex(),
		Quantity:     res.Quantity,
		FirstTokenId: res.FirstTokenId,
		TxHash:       res.TxHash,
		Status:       drop.ClaimStatusSubmitted,
		ClaimedAt:    time.Unix(res.ClaimedAt, 0),
	}
	if err := s.Dao.CreateClaimRecord(ctx, record); err != nil {
		logger.Error("create claim record failed", zap.Error(err), zap.String("tx_hash", res.TxHash))
	}
	return record
}

// VerifyClaim 只读预检，返回不通过的具体原因
func VerifyClaim(ctx context.Context, s *svc.ServerCtx, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	claimer := common.HexToAddress(req.Claimer)

	price, err := parseWei(req.PricePerToken)
	if err != nil {
		return nil, errors.Wrap(err, "price_per_token")
	}
	attached, err := parseWei(req.AttachedValue)
	if err != nil {
		return nil, errors.Wrap(err, "attached_value")
	}

	resp := new(types.VerifyResponse)
	if err := s.Engine.VerifyClaim(req.PhaseId, claimer, req.Quantity, common.HexToAddress(req.Currency), price, attached); err != nil {
		if errors.Is(err, engine.ErrConditionNotFound) {
			return nil, err
		}
		resp.Reason = err.Error()
		return resp, nil
	}

	proof, err := resolveVerifyProof(ctx, s, claimer, req)
	if err != nil {
		return nil, err
	}
	valid, leafIndex, err := s.Engine.VerifyAllowlist(req.PhaseId, claimer, req.Quantity, proof)
	if err != nil {
		if errors.Is(err, engine.ErrConditionNotFound) {
			return nil, err
		}
		resp.Reason = err.Error()
		return resp, nil
	}

	resp.Eligible = true
	resp.AllowlistValid = valid
	resp.LeafIndex = leafIndex
	return resp, nil
}

func resolveVerifyProof(ctx context.Context, s *svc.ServerCtx, claimer common.Address, req *types.VerifyRequest) (*engine.AllowlistProof, error) {
	if len(req.Proof) > 0 {
		siblings, err := proofFromStrings(req.Proof)
		if err != nil {
			return nil, err
		}
		return &engine.AllowlistProof{
			Proof:       siblings,
			LeafIndex:   req.LeafIndex,
			MaxQuantity: req.MaxQuantity,
		}, nil
	}
	entry, err := s.Dao.GetAllowlistEntry(ctx, req.PhaseId, claimer.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "load allowlist entry")
	}
	if entry == nil {
		return nil, nil
	}
	siblings, err := parseProofJSON(entry.Proof)
	if err != nil {
		return nil, err
	}
	return &engine.AllowlistProof{
		Proof:       siblings,
		LeafIndex:   entry.LeafIndex,
		MaxQuantity: entry.MaxQuantity,
	}, nil
}

// GetClaimRecords 分页查询领取流水
func GetClaimRecords(ctx context.Context, s *svc.ServerCtx, phaseId int64, wallet string, page, pageSize int) (*types.ClaimRecordsResponse, error) {
	if wallet != "" {
		addr, err := xcommon.UnifyAddress(wallet)
		if err != nil {
			return nil, err
		}
		wallet = addr
	}
	records, total, err := s.Dao.GetClaimRecords(ctx, phaseId, wallet, page, pageSize)
	if err != nil {
		return nil, err
	}
	views := make([]types.ClaimRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, types.ClaimRecordView{
			RecordId:     r.ID,
			PhaseId:      r.PhaseId,
			Claimer:      r.Claimer,
			Receiver:     r.Receiver,
			Quantity:     r.Quantity,
			FirstTokenId: r.FirstTokenId,
			TxHash:       r.TxHash,
			Status:       string(r.Status),
			ClaimedAt:    r.ClaimedAt.Unix(),
		})
	}
	return &types.ClaimRecordsResponse{
		Total:   total,
		Records: views,
	}, nil
}
