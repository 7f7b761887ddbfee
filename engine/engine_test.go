package engine

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	walletB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	walletC = common.HexToAddress("0x3333333333333333333333333333333333333333")
	walletD = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type fakeClock struct {
	mu sync.Mutex
	ts int64
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.ts, 0)
}

func (c *fakeClock) advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += seconds
}

type stubMinter struct {
	nextTokenId  uint64
	lastReceiver common.Address
	calls        int
	fail         error
}

func (m *stubMinter) Mint(_ context.Context, receiver common.Address, quantity uint64) (*MintResult, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	first := m.nextTokenId
	m.nextTokenId += quantity
	m.lastReceiver = receiver
	m.calls++
	return &MintResult{FirstTokenId: first, TxHash: fmt.Sprintf("0x%064x", m.calls)}, nil
}

type stubPayment struct {
	calls     int
	lastTotal *big.Int
	fail      error
}

func (p *stubPayment) Collect(_ context.Context, _, _ common.Address, amount, _ *big.Int) error {
	if p.fail != nil {
		return p.fail
	}
	p.calls++
	p.lastTotal = new(big.Int).Set(amount)
	return nil
}

func newTestEngine(clock *fakeClock) (*Engine, *stubMinter, *stubPayment) {
	minter := &stubMinter{}
	payment := &stubPayment{}
	e := New(Config{
		Minter:  minter,
		Payment: payment,
		Now:     clock.now,
	})
	return e, minter, payment
}

// 免费、无白名单、无冷却的条件
func freeCondition(start int64) *ClaimCondition {
	return &ClaimCondition{
		StartTimestamp: start,
		PricePerToken:  big.NewInt(0),
	}
}

func freeClaim(wallet common.Address, quantity uint64) *ClaimRequest {
	return &ClaimRequest{
		Claimer:       wallet,
		Quantity:      quantity,
		PricePerToken: big.NewInt(0),
	}
}

func TestSetClaimConditionsRejectsNonIncreasingTimestamps(t *testing.T) {
	e, _, _ := newTestEngine(&fakeClock{ts: 1000})

	err := e.SetClaimConditions([]*ClaimCondition{
		freeCondition(100),
		freeCondition(100),
	}, false)
	require.ErrorIs(t, err, ErrInvalidTimestamps)

	err = e.SetClaimConditions([]*ClaimCondition{
		freeCondition(200),
		freeCondition(100),
	}, false)
	require.ErrorIs(t, err, ErrInvalidTimestamps)

	err = e.SetClaimConditions([]*ClaimCondition{
		freeCondition(100),
		freeCondition(200),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Count())
}

func TestSetClaimConditionsRejectsNegativePrice(t *testing.T) {
	e, _, _ := newTestEngine(&fakeClock{ts: 1000})

	cond := freeCondition(100)
	cond.PricePerToken = big.NewInt(-1)
	err := e.SetClaimConditions([]*ClaimCondition{cond}, false)
	require.ErrorIs(t, err, ErrInvalidCurrencyOrPrice)
}

func TestActiveConditionResolution(t *testing.T) {
	clock := &fakeClock{ts: 50}
	e, _, _ := newTestEngine(clock)

	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{
		freeCondition(100),
		freeCondition(200),
	}, false))

	// 最早的阶段还没开始
	_, err := e.ActiveConditionId()
	require.ErrorIs(t, err, ErrNotStarted)

	// 恰好到达启动时间即生效
	clock.advance(50)
	id, err := e.ActiveConditionId()
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	// 后启动的阶段覆盖先启动的
	clock.advance(150)
	id, err = e.ActiveConditionId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestClaimFlowWithSupplyLimitAndCooldown(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, minter, payment := newTestEngine(clock)

	price := big.NewInt(1e17) // 0.1 ETH
	cond := &ClaimCondition{
		StartTimestamp:         500,
		MaxClaimableSupply:     15,
		QuantityLimitPerWallet: 5,
		WaitTimeBetweenClaims:  5,
		PricePerToken:          new(big.Int).Set(price),
		Currency:               NativeToken,
	}
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	pricedClaim := func(wallet common.Address, quantity uint64) *ClaimRequest {
		total := new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))
		return &ClaimRequest{
			Claimer:       wallet,
			Quantity:      quantity,
			Currency:      NativeToken,
			PricePerToken: new(big.Int).Set(price),
			AttachedValue: total,
		}
	}

	res, err := e.Claim(context.Background(), pricedClaim(walletA, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.PhaseId)
	assert.Equal(t, uint64(0), res.FirstTokenId)
	assert.Equal(t, uint64(3), res.Quantity)
	assert.Equal(t, int64(1000), res.ClaimedAt)
	assert.Equal(t, big.NewInt(3e17), payment.lastTotal)

	// 冷却期内再次领取
	_, err = e.Claim(context.Background(), pricedClaim(walletA, 1))
	require.ErrorIs(t, err, ErrCannotClaimYet)
	assert.Contains(t, err.Error(), "next valid claim at 1005")

	// 冷却结束后可以继续，直到钱包上限
	clock.advance(5)
	res, err = e.Claim(context.Background(), pricedClaim(walletA, 2))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.FirstTokenId)
	assert.Equal(t, uint64(5), e.WalletClaimed(0, walletA))

	clock.advance(5)
	_, err = e.Claim(context.Background(), pricedClaim(walletA, 1))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// 其余钱包把供应量领完
	_, err = e.Claim(context.Background(), pricedClaim(walletB, 5))
	require.NoError(t, err)
	_, err = e.Claim(context.Background(), pricedClaim(walletC, 5))
	require.NoError(t, err)

	cur, err := e.ConditionById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), cur.SupplyClaimed)

	_, err = e.Claim(context.Background(), pricedClaim(walletD, 1))
	require.ErrorIs(t, err, ErrExceedMaxSupply)
	assert.Equal(t, uint64(15), minter.nextTokenId)
}

func TestClaimRejectsZeroQuantity(t *testing.T) {
	e, _, _ := newTestEngine(&fakeClock{ts: 1000})
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{freeCondition(500)}, false))

	_, err := e.Claim(context.Background(), freeClaim(walletA, 0))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestClaimCurrencyAndPriceChecks(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	price := big.NewInt(1e18)
	cond := freeCondition(500)
	cond.PricePerToken = new(big.Int).Set(price)
	cond.Currency = NativeToken
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	// 币种不符
	_, err := e.Claim(context.Background(), &ClaimRequest{
		Claimer:       walletA,
		Quantity:      1,
		Currency:      walletB,
		PricePerToken: new(big.Int).Set(price),
		AttachedValue: new(big.Int).Set(price),
	})
	require.ErrorIs(t, err, ErrInvalidCurrencyOrPrice)

	// 单价不符
	_, err = e.Claim(context.Background(), &ClaimRequest{
		Claimer:       walletA,
		Quantity:      1,
		Currency:      NativeToken,
		PricePerToken: big.NewInt(5e17),
		AttachedValue: new(big.Int).Set(price),
	})
	require.ErrorIs(t, err, ErrInvalidCurrencyOrPrice)

	// 原生代币随单金额必须与总价完全一致
	for _, attached := range []*big.Int{nil, big.NewInt(5e17), big.NewInt(2e18)} {
		_, err = e.Claim(context.Background(), &ClaimRequest{
			Claimer:       walletA,
			Quantity:      1,
			Currency:      NativeToken,
			PricePerToken: new(big.Int).Set(price),
			AttachedValue: attached,
		})
		require.ErrorIs(t, err, ErrInvalidCurrencyOrPrice)
	}

	_, err = e.Claim(context.Background(), &ClaimRequest{
		Claimer:       walletA,
		Quantity:      2,
		Currency:      NativeToken,
		PricePerToken: new(big.Int).Set(price),
		AttachedValue: big.NewInt(2e18),
	})
	require.NoError(t, err)
}

// 两叶子的手工merkle树，证明就是对方叶子
func twoLeafTree(t *testing.T, maxA, maxB uint64) (root common.Hash, proofA, proofB []common.Hash) {
	t.Helper()
	leafA := LeafHash(0, walletA, maxA)
	leafB := LeafHash(1, walletB, maxB)
	root = sortedPairHash(leafA, leafB)
	return root, []common.Hash{leafB}, []common.Hash{leafA}
}

func sortedPairHash(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}

func TestClaimAllowlistQuotaEnforcement(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	root, proofA, _ := twoLeafTree(t, 3, 2)
	cond := freeCondition(500)
	cond.MerkleRoot = root
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	// 不带证明
	_, err := e.Claim(context.Background(), freeClaim(walletA, 1))
	require.ErrorIs(t, err, ErrNotInWhitelist)

	// 配额被篡改后证明失效
	badProof := &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 100}
	req := freeClaim(walletA, 1)
	req.Proof = badProof
	_, err = e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrNotInWhitelist)

	// 非白名单钱包借用他人证明
	req = freeClaim(walletC, 1)
	req.Proof = &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 3}
	_, err = e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrNotInWhitelist)

	goodProof := &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 3}

	// 超过叶子剩余配额
	req = freeClaim(walletA, 4)
	req.Proof = goodProof
	_, err = e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidQuantityProof)

	req = freeClaim(walletA, 3)
	req.Proof = goodProof
	_, err = e.Claim(context.Background(), req)
	require.NoError(t, err)

	// 配额耗尽
	req = freeClaim(walletA, 1)
	req.Proof = goodProof
	_, err = e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrProofClaimed)
}

func TestClaimAllowlistFallsBackToWalletLimit(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	// 叶子配额为0，按阶段每钱包上限执行
	root, proofA, _ := twoLeafTree(t, 0, 0)
	cond := freeCondition(500)
	cond.MerkleRoot = root
	cond.QuantityLimitPerWallet = 2
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	proof := &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 0}

	req := freeClaim(walletA, 3)
	req.Proof = proof
	_, err := e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	req = freeClaim(walletA, 2)
	req.Proof = proof
	_, err = e.Claim(context.Background(), req)
	require.NoError(t, err)

	req = freeClaim(walletA, 1)
	req.Proof = proof
	_, err = e.Claim(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestClaimCollaboratorFailureLeavesLedgerUntouched(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, minter, payment := newTestEngine(clock)

	price := big.NewInt(1e17)
	cond := freeCondition(500)
	cond.PricePerToken = new(big.Int).Set(price)
	cond.Currency = NativeToken
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	req := &ClaimRequest{
		Claimer:       walletA,
		Quantity:      1,
		Currency:      NativeToken,
		PricePerToken: new(big.Int).Set(price),
		AttachedValue: new(big.Int).Set(price),
	}

	payment.fail = errors.New("rpc unavailable")
	_, err := e.Claim(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 0, minter.calls)

	payment.fail = nil
	minter.fail = errors.New("tx reverted")
	_, err = e.Claim(context.Background(), req)
	require.Error(t, err)

	// 两次失败都不落账：计数为零，也没有进入冷却
	assert.Equal(t, uint64(0), e.WalletClaimed(0, walletA))
	cur, err := e.ConditionById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cur.SupplyClaimed)
	last, next, err := e.ClaimTimestamps(0, walletA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
	assert.Equal(t, int64(0), next)

	minter.fail = nil
	_, err = e.Claim(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.WalletClaimed(0, walletA))
}

func TestClaimReceiverDefaultsToClaimer(t *testing.T) {
	e, minter, _ := newTestEngine(&fakeClock{ts: 1000})
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{freeCondition(500)}, false))

	_, err := e.Claim(context.Background(), freeClaim(walletA, 1))
	require.NoError(t, err)
	assert.Equal(t, walletA, minter.lastReceiver)

	req := freeClaim(walletA, 1)
	req.Receiver = walletB
	_, err = e.Claim(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, walletB, minter.lastReceiver)
}

func TestSetClaimConditionsCarriesSupplyWithoutReset(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	cond := freeCondition(500)
	cond.MaxClaimableSupply = 10
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	_, err := e.Claim(context.Background(), freeClaim(walletA, 4))
	require.NoError(t, err)

	// 不重置：同下标阶段的已领量继承，阶段id不变
	replacement := freeCondition(500)
	replacement.MaxClaimableSupply = 6
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{replacement}, false))
	assert.Equal(t, int64(0), e.PhaseIdBase())

	cur, err := e.ConditionById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), cur.SupplyClaimed)

	// 剩余量只有2
	_, err = e.Claim(context.Background(), freeClaim(walletB, 3))
	require.ErrorIs(t, err, ErrExceedMaxSupply)
	_, err = e.Claim(context.Background(), freeClaim(walletB, 2))
	require.NoError(t, err)
}

func TestSetClaimConditionsResetBumpsPhaseIdBase(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	cond := freeCondition(500)
	cond.QuantityLimitPerWallet = 1
	cond.WaitTimeBetweenClaims = 3600
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond, freeCondition(9000)}, false))

	_, err := e.Claim(context.Background(), freeClaim(walletA, 1))
	require.NoError(t, err)
	_, err = e.Claim(context.Background(), freeClaim(walletA, 1))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// 重置资格：base跳过两个旧阶段，全部历史一笔勾销
	reset := freeCondition(500)
	reset.QuantityLimitPerWallet = 1
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{reset}, true))
	assert.Equal(t, int64(2), e.PhaseIdBase())

	id, err := e.ActiveConditionId()
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	// 旧阶段id查不到了
	_, _, err = e.ClaimTimestamps(0, walletA)
	require.ErrorIs(t, err, ErrConditionNotFound)

	// 同一个钱包在新阶段里从零开始
	assert.Equal(t, uint64(0), e.WalletClaimed(2, walletA))
	_, err = e.Claim(context.Background(), freeClaim(walletA, 1))
	require.NoError(t, err)
}

func TestClaimTimestamps(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	cond := freeCondition(500)
	cond.WaitTimeBetweenClaims = 60
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	last, next, err := e.ClaimTimestamps(0, walletA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
	assert.Equal(t, int64(0), next)

	_, _, err = e.ClaimTimestamps(42, walletA)
	require.ErrorIs(t, err, ErrConditionNotFound)

	_, err = e.Claim(context.Background(), freeClaim(walletA, 1))
	require.NoError(t, err)

	last, next, err = e.ClaimTimestamps(0, walletA)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), last)
	assert.Equal(t, int64(1060), next)
}

func TestVerifyClaimAndAllowlist(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	root, proofA, _ := twoLeafTree(t, 3, 2)
	cond := freeCondition(500)
	cond.MerkleRoot = root
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	err := e.VerifyClaim(0, walletA, 1, common.Address{}, big.NewInt(0), nil)
	require.NoError(t, err)

	err = e.VerifyClaim(0, walletA, 0, common.Address{}, big.NewInt(0), nil)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	ok, leafIndex, err := e.VerifyAllowlist(0, walletA, 1, &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), leafIndex)

	_, _, err = e.VerifyAllowlist(0, walletC, 1, &AllowlistProof{Proof: proofA, LeafIndex: 0, MaxQuantity: 3})
	require.ErrorIs(t, err, ErrNotInWhitelist)
}

func TestRestoreRebuildsLedger(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, _, _ := newTestEngine(clock)

	cond := freeCondition(500)
	cond.MaxClaimableSupply = 10
	cond.SupplyClaimed = 7
	cond.QuantityLimitPerWallet = 5
	cond.WaitTimeBetweenClaims = 60
	e.Restore(ConditionList{
		PhaseIdBase: 3,
		Conditions:  []*ClaimCondition{cond},
	}, []LedgerEntry{
		{PhaseId: 3, Wallet: walletA, ClaimedQuantity: 5, LastClaimAt: 990, LeafIndex: -1},
		{PhaseId: 3, Wallet: walletB, ClaimedQuantity: 2, LastClaimAt: 990, LeafIndex: -1},
	})

	assert.Equal(t, int64(3), e.PhaseIdBase())
	assert.Equal(t, uint64(5), e.WalletClaimed(3, walletA))

	last, next, err := e.ClaimTimestamps(3, walletA)
	require.NoError(t, err)
	assert.Equal(t, int64(990), last)
	assert.Equal(t, int64(1050), next)

	// 恢复后钱包上限和冷却继续生效
	_, err = e.Claim(context.Background(), freeClaim(walletA, 1))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = e.Claim(context.Background(), freeClaim(walletB, 1))
	require.ErrorIs(t, err, ErrCannotClaimYet)

	clock.advance(60)
	_, err = e.Claim(context.Background(), freeClaim(walletB, 1))
	require.NoError(t, err)
}

func TestConcurrentClaimsNeverExceedSupply(t *testing.T) {
	clock := &fakeClock{ts: 1000}
	e, minter, _ := newTestEngine(clock)

	cond := freeCondition(500)
	cond.MaxClaimableSupply = 10
	require.NoError(t, e.SetClaimConditions([]*ClaimCondition{cond}, false))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wallet := common.BigToAddress(big.NewInt(int64(i + 100)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Claim(context.Background(), freeClaim(wallet, 1)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrExceedMaxSupply)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, uint64(10), minter.nextTokenId)
	cur, err := e.ConditionById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cur.SupplyClaimed)
}
