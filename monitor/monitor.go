package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/locey/NFTDrop/logger/xzap"
	"github.com/locey/NFTDrop/service/svc"
)

// TokensClaimedEvent 链上领取事件
// 事件签名: TokensClaimed(uint256 indexed claimConditionIndex, address indexed claimer, address indexed receiver, uint256 startTokenId, uint256 quantityClaimed)
type TokensClaimedEvent struct {
	ConditionIndex  *big.Int
	Claimer         common.Address
	Receiver        common.Address
	StartTokenId    *big.Int
	QuantityClaimed *big.Int
}

// StartClaimMonitor 订阅合约的TokensClaimed事件，确认对应的领取流水
func StartClaimMonitor(svcCtx *svc.ServerCtx) {
	ctx := context.Background()
	client := svcCtx.Drop.Client()
	contractAddress := svcCtx.Drop.Address()

	topicHash := crypto.Keccak256Hash([]byte("TokensClaimed(uint256,address,address,uint256,uint256)"))
	query := ethereum.FilterQuery{
		Addresses: []common.Address{contractAddress},
		Topics:    [][]common.Hash{{topicHash}},
	}

	for {
		logs := make(chan types.Log)
		sub, err := client.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			xzap.WithContext(ctx).Error("subscribe claim events failed", zap.Error(err))
			time.Sleep(10 * time.Second)
			continue
		}
		xzap.WithContext(ctx).Info("claim monitor started", zap.String("contract", contractAddress.Hex()))

		if err := consumeLogs(ctx, svcCtx, sub.Err(), logs); err != nil {
			xzap.WithContext(ctx).Error("claim subscription dropped", zap.Error(err))
			sub.Unsubscribe()
			time.Sleep(10 * time.Second)
		}
	}
}

func consumeLogs(ctx context.Context, svcCtx *svc.ServerCtx, errCh <-chan error, logs <-chan types.Log) error {
	for {
		select {
		case err := <-errCh:
			return err
		case vLog := <-logs:
			event, err := parseTokensClaimedEvent(vLog)
			if err != nil {
				xzap.WithContext(ctx).Warn("skip malformed claim event",
					zap.String("tx_hash", vLog.TxHash.Hex()), zap.Error(err))
				continue
			}

			if err := svcCtx.Dao.ConfirmClaimRecord(ctx, vLog.TxHash.Hex()); err != nil {
				xzap.WithContext(ctx).Error("confirm claim record failed",
					zap.String("tx_hash", vLog.TxHash.Hex()), zap.Error(err))
				continue
			}
			xzap.WithContext(ctx).Info("claim confirmed",
				zap.String("tx_hash", vLog.TxHash.Hex()),
				zap.String("receiver", event.Receiver.Hex()),
				zap.String("quantity", event.QuantityClaimed.String()),
				zap.Uint64("block", vLog.BlockNumber))
		}
	}
}

func parseTokensClaimedEvent(vLog types.Log) (*TokensClaimedEvent, error) {
	if len(vLog.Topics) < 4 {
		return nil, fmt.Errorf("invalid number of topics: %d", len(vLog.Topics))
	}
	if len(vLog.Data) < 64 {
		return nil, fmt.Errorf("invalid data length: %d", len(vLog.Data))
	}

	return &TokensClaimedEvent{
		ConditionIndex:  new(big.Int).SetBytes(vLog.Topics[1].Bytes()),
		Claimer:         common.BytesToAddress(vLog.Topics[2].Bytes()),
		Receiver:        common.BytesToAddress(vLog.Topics[3].Bytes()),
		StartTokenId:    new(big.Int).SetBytes(vLog.Data[0:32]),
		QuantityClaimed: new(big.Int).SetBytes(vLog.Data[32:64]),
	}, nil
}
