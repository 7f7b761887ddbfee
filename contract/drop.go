package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/locey/NFTDrop/config"
	"github.com/locey/NFTDrop/engine"
)

// 合约ABI（简化版本，只包含我们需要的方法）
const dropContractABI = `[
    {
        "inputs": [
            {
                "internalType": "address",
                "name": "receiver",
                "type": "address"
            },
            {
                "internalType": "uint256",
                "name": "quantity",
                "type": "uint256"
            }
        ],
        "name": "claimTo",
        "outputs": [],
        "stateMutability": "nonpayable",
        "type": "function"
    },
    {
        "inputs": [],
        "name": "totalMinted",
        "outputs": [
            {
                "internalType": "uint256",
                "name": "",
                "type": "uint256"
            }
        ],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [],
        "name": "paused",
        "outputs": [
            {
                "internalType": "bool",
                "name": "",
                "type": "bool"
            }
        ],
        "stateMutability": "view",
        "type": "function"
    }
]`

const callTimeout = 30 * time.Second

// DropContract 封装Drop合约的交互方法，实现engine.Minter
type DropContract struct {
	client      *ethclient.Client
	config      *config.Config
	contractABI abi.ABI
	address     common.Address
	privateKey  *ecdsa.PrivateKey
	chainId     *big.Int
}

func NewDropContract(cfg *config.Config) (*DropContract, error) {
	var client *ethclient.Client
	var err error

	// 最多重试3次
	for i := 0; i < 3; i++ {
		client, err = connectWithTimeout(cfg.Chain.RPCEndpoint, callTimeout)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node after 3 attempts: %v", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(dropContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %v", err)
	}

	if !common.IsHexAddress(cfg.Chain.DropContract) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.Chain.DropContract)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	return &DropContract{
		client:      client,
		config:      cfg,
		contractABI: parsedABI,
		address:     common.HexToAddress(cfg.Chain.DropContract),
		privateKey:  privateKey,
		chainId:     big.NewInt(cfg.Chain.ChainID),
	}, nil
}

func (c *DropContract) Client() *ethclient.Client {
	return c.client
}

func (c *DropContract) Address() common.Address {
	return c.address
}

func connectWithTimeout(endpoint string, timeout time.Duration) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %v", err)
	}
	return client, nil
}

// CheckContractStatus 检查合约是否暂停
func (c *DropContract) CheckContractStatus(ctx context.Context) error {
	var paused bool
	if err := c.callView(ctx, "paused", &paused); err != nil {
		return fmt.Errorf("failed to check contract pause status: %v", err)
	}
	if paused {
		return fmt.Errorf("contract is paused")
	}
	return nil
}

// TotalMinted 已铸造总量，下一个token id从这里开始
func (c *DropContract) TotalMinted(ctx context.Context) (*big.Int, error) {
	total := new(big.Int)
	if err := c.callView(ctx, "totalMinted", &total); err != nil {
		return nil, fmt.Errorf("failed to read totalMinted: %v", err)
	}
	return total, nil
}

// Mint 给receiver铸造quantity个，返回起始token id和交易哈希
func (c *DropContract) Mint(ctx context.Context, receiver common.Address, quantity uint64) (*engine.MintResult, error) {
	if err := c.CheckContractStatus(ctx); err != nil {
		return nil, err
	}

	totalMinted, err := c.TotalMinted(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.contractABI.Pack("claimTo", receiver, new(big.Int).SetUint64(quantity))
	if err != nil {
		return nil, fmt.Errorf("failed to pack claimTo: %v", err)
	}

	signedTx, err := c.sendTx(ctx, data)
	if err != nil {
		return nil, err
	}

	return &engine.MintResult{
		FirstTokenId: totalMinted.Uint64(),
		TxHash:       signedTx.Hash().Hex(),
	}, nil
}

func (c *DropContract) callView(ctx context.Context, method string, out any) error {
	data, err := c.contractABI.Pack(method)
	if err != nil {
		return err
	}
	callMsg := ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := c.client.CallContract(ctx, callMsg, nil)
	if err != nil {
		return err
	}
	return c.contractABI.UnpackIntoInterface(out, method, result)
}

func (c *DropContract) sendTx(ctx context.Context, data []byte) (*types.Transaction, error) {
	fromAddress := crypto.PubkeyToAddress(c.privateKey.PublicKey)
	nonce, err := c.client.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %v", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %v", err)
	}

	tx := types.NewTransaction(nonce, c.address, big.NewInt(0), 500000, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainId), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %v", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send tx: %v", err)
	}
	return signedTx, nil
}
