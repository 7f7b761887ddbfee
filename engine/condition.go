package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeToken 原生代币（ETH）支付时使用的约定地址
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// ClaimCondition 一个阶段的领取条件
// MaxClaimableSupply、QuantityLimitPerWallet为0表示不限量
// MerkleRoot为零值表示不启用白名单
type ClaimCondition struct {
	StartTimestamp         int64          `json:"start_timestamp"`
	MaxClaimableSupply     uint64         `json:"max_claimable_supply"`
	SupplyClaimed          uint64         `json:"supply_claimed"`
	QuantityLimitPerWallet uint64         `json:"quantity_limit_per_wallet"`
	WaitTimeBetweenClaims  int64          `json:"wait_time_between_claims"`
	MerkleRoot             common.Hash    `json:"merkle_root"`
	PricePerToken          *big.Int       `json:"price_per_token"`
	Currency               common.Address `json:"currency"`
}

func (c *ClaimCondition) HasAllowlist() bool {
	return c.MerkleRoot != (common.Hash{})
}

func (c *ClaimCondition) clone() *ClaimCondition {
	cp := *c
	cp.PricePerToken = new(big.Int)
	if c.PricePerToken != nil {
		cp.PricePerToken.Set(c.PricePerToken)
	}
	return &cp
}

// ConditionList 有序的领取条件列表
// 阶段id = PhaseIdBase + 下标，重置资格时base跳过所有历史id，
// 保证账本里旧阶段的记录不会污染新列表
type ConditionList struct {
	PhaseIdBase int64
	Conditions  []*ClaimCondition
}

func (l *ConditionList) Count() int {
	return len(l.Conditions)
}

// activeIndex 当前生效的条件下标，倒序取启动时间不晚于now的最后一个
// 没有已启动的条件时返回-1
func (l *ConditionList) activeIndex(now int64) int {
	for i := len(l.Conditions) - 1; i >= 0; i-- {
		if l.Conditions[i].StartTimestamp <= now {
			return i
		}
	}
	return -1
}

func (l *ConditionList) indexOf(phaseId int64) int {
	idx := phaseId - l.PhaseIdBase
	if idx < 0 || idx >= int64(len(l.Conditions)) {
		return -1
	}
	return int(idx)
}
