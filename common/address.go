package common

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// UnifyAddress 把用户传入的地址统一成EIP-55校验和格式
func UnifyAddress(address string) (string, error) {
	if len(address) <= 2 || !common.IsHexAddress(address) {
		return "", errors.New("user address is illegal")
	}
	return common.HexToAddress(address).Hex(), nil
}
