package engine

import "github.com/pkg/errors"

// 领取被拒绝的具体原因，调用方用errors.Is区分
var (
	ErrNotStarted             = errors.New("claim not started")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidCurrencyOrPrice = errors.New("invalid currency or price")
	ErrExceedMaxSupply        = errors.New("exceed max claimable supply")
	ErrNotInWhitelist         = errors.New("not in whitelist")
	ErrInvalidQuantityProof   = errors.New("invalid quantity proof")
	ErrProofClaimed           = errors.New("proof claimed")
	ErrCannotClaimYet         = errors.New("cannot claim yet")
)

// 配置类错误，安装条件列表时拒绝
var ErrInvalidTimestamps = errors.New("start timestamps must be strictly increasing")

// 调用方传参错误，与业务拒绝原因区分开
var (
	ErrConditionNotFound = errors.New("claim condition not found")
	ErrIndexOutOfRange   = errors.New("claim condition index out of range")
)
