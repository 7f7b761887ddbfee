package engine

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafHash 白名单叶子哈希
// 编码与建树工具保持逐字节一致:
// keccak256(uint256(leafIndex) ‖ wallet ‖ uint256(maxQuantity))
func LeafHash(leafIndex uint64, wallet common.Address, maxQuantity uint64) common.Hash {
	var packed []byte
	packed = append(packed, math.U256Bytes(new(big.Int).SetUint64(leafIndex))...)
	packed = append(packed, wallet.Bytes()...)
	packed = append(packed, math.U256Bytes(new(big.Int).SetUint64(maxQuantity))...)
	return crypto.Keccak256Hash(packed)
}

// VerifyProof 自底向上重建merkle根
// 每一步把当前哈希与兄弟哈希按字节序小者在前拼接后做keccak256，
// 与建树时SortSiblingPairs的顺序一致
func VerifyProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	current := leaf.Bytes()
	for _, sibling := range proof {
		s := sibling.Bytes()
		if bytes.Compare(current, s) <= 0 {
			current = crypto.Keccak256(current, s)
		} else {
			current = crypto.Keccak256(s, current)
		}
	}
	return bytes.Equal(current, root.Bytes())
}
