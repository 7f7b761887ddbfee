package svc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/locey/NFTDrop/engine"
	"github.com/locey/NFTDrop/stores/gdb/drop"
)

// ConditionFromModel 库表行转引擎条件
func ConditionFromModel(row *drop.DropClaimCondition) *engine.ClaimCondition {
	price := new(big.Int)
	if row.PricePerToken != "" {
		price.SetString(row.PricePerToken, 10)
	}
	return &engine.ClaimCondition{
		StartTimestamp:         row.StartTimestamp,
		MaxClaimableSupply:     row.MaxClaimableSupply,
		SupplyClaimed:          row.SupplyClaimed,
		QuantityLimitPerWallet: row.QuantityLimitPerWallet,
		WaitTimeBetweenClaims:  row.WaitTimeBetweenClaims,
		MerkleRoot:             common.HexToHash(row.MerkleRoot),
		PricePerToken:          price,
		Currency:               common.HexToAddress(row.Currency),
	}
}

// ConditionToModel 引擎条件转库表行
func ConditionToModel(phaseId int64, idx int, c *engine.ClaimCondition) *drop.DropClaimCondition {
	return &drop.DropClaimCondition{
		PhaseId:                phaseId,
		Idx:                    idx,
		StartTimestamp:         c.StartTimestamp,
		MaxClaimableSupply:     c.MaxClaimableSupply,
		SupplyClaimed:          c.SupplyClaimed,
		QuantityLimitPerWallet: c.QuantityLimitPerWallet,
		WaitTimeBetweenClaims:  c.WaitTimeBetweenClaims,
		MerkleRoot:             c.MerkleRoot.Hex(),
		PricePerToken:          c.PricePerToken.String(),
		Currency:               c.Currency.Hex(),
	}
}

func LedgerEntryFromModel(wc *drop.DropWalletClaim) engine.LedgerEntry {
	return engine.LedgerEntry{
		PhaseId:         wc.PhaseId,
		Wallet:          common.HexToAddress(wc.Wallet),
		ClaimedQuantity: wc.ClaimedQuantity,
		LastClaimAt:     wc.LastClaimAt,
		LeafIndex:       wc.LeafIndex,
	}
}
