package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/locey/NFTDrop/engine"
)

const erc20ABI = `[
    {
        "inputs": [
            {
                "internalType": "address",
                "name": "from",
                "type": "address"
            },
            {
                "internalType": "address",
                "name": "to",
                "type": "address"
            },
            {
                "internalType": "uint256",
                "name": "amount",
                "type": "uint256"
            }
        ],
        "name": "transferFrom",
        "outputs": [
            {
                "internalType": "bool",
                "name": "",
                "type": "bool"
            }
        ],
        "stateMutability": "nonpayable",
        "type": "function"
    }
]`

// Payment 收款协作方，实现engine.PaymentCollector
// 原生代币随领取请求足额附带（引擎已校验金额完全一致），
// ERC20通过事先授权的transferFrom划转到收款地址
type Payment struct {
	drop     *DropContract
	erc20ABI abi.ABI
	treasury common.Address
}

func NewPayment(drop *DropContract, treasury string) (*Payment, error) {
	if !common.IsHexAddress(treasury) {
		return nil, fmt.Errorf("invalid primary sale address: %s", treasury)
	}
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %v", err)
	}
	return &Payment{
		drop:     drop,
		erc20ABI: parsedABI,
		treasury: common.HexToAddress(treasury),
	}, nil
}

func (p *Payment) Collect(ctx context.Context, payer, currency common.Address, amount, attachedValue *big.Int) error {
	if currency == engine.NativeToken {
		// 金额一致性已在资格检查里保证，这里没有额外动作
		return nil
	}

	data, err := p.erc20ABI.Pack("transferFrom", payer, p.treasury, amount)
	if err != nil {
		return fmt.Errorf("failed to pack transferFrom: %v", err)
	}

	c := p.drop
	fromAddress := crypto.PubkeyToAddress(c.privateKey.PublicKey)
	nonce, err := c.client.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %v", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %v", err)
	}

	tx := types.NewTransaction(nonce, currency, big.NewInt(0), 100000, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainId), c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign tx: %v", err)
	}
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to collect payment: %v", err)
	}
	return nil
}
