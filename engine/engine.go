package engine

import (
	"context"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/locey/NFTDrop/event"
)

const (
	ClaimedEventType           event.Type = "drop.claimed"
	ConditionsUpdatedEventType event.Type = "drop.conditions_updated"
)

// ClaimedEvent 每次领取成功后发布
type ClaimedEvent struct {
	PhaseId      int64
	Claimer      common.Address
	Receiver     common.Address
	FirstTokenId uint64
	Quantity     uint64
}

// ConditionsUpdatedEvent 条件列表安装成功后发布
type ConditionsUpdatedEvent struct {
	PhaseIdBase      int64
	Conditions       []*ClaimCondition
	ResetEligibility bool
}

// Minter 铸造协作方，必须整体成功或整体失败
type Minter interface {
	Mint(ctx context.Context, receiver common.Address, quantity uint64) (*MintResult, error)
}

type MintResult struct {
	FirstTokenId uint64
	TxHash       string
}

// PaymentCollector 收款协作方
// 原生代币要求attachedValue与amount完全一致，ERC20走事先授权
type PaymentCollector interface {
	Collect(ctx context.Context, payer, currency common.Address, amount, attachedValue *big.Int) error
}

// AllowlistProof 白名单成员证明
// MaxQuantity为0表示叶子不带独立配额，按阶段的每钱包上限执行
type AllowlistProof struct {
	Proof       []common.Hash
	LeafIndex   uint64
	MaxQuantity uint64
}

type ClaimRequest struct {
	Claimer       common.Address
	Receiver      common.Address
	Quantity      uint64
	Currency      common.Address
	PricePerToken *big.Int
	AttachedValue *big.Int
	Proof         *AllowlistProof
}

type ClaimResult struct {
	PhaseId      int64
	FirstTokenId uint64
	Quantity     uint64
	TxHash       string
	ClaimedAt    int64
}

type Config struct {
	Minter  Minter
	Payment PaymentCollector
	Bus     *event.Bus
	Now     func() time.Time
}

// Engine 领取条件引擎
// 一把锁串行化全部领取请求：资格检查读到的计数和落账写入同属一个临界区，
// 两个并发请求不可能同时越过同一阶段的供应上限
type Engine struct {
	mu      sync.Mutex
	list    ConditionList
	ledger  *Ledger
	minter  Minter
	payment PaymentCollector
	bus     *event.Bus
	now     func() time.Time
}

func New(cfg Config) *Engine {
	e := &Engine{
		ledger:  NewLedger(),
		minter:  cfg.Minter,
		payment: cfg.Payment,
		bus:     cfg.Bus,
		now:     cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Restore 启动时从持久化状态恢复，替换当前列表和账本
func (e *Engine) Restore(list ConditionList, entries []LedgerEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conds := make([]*ClaimCondition, 0, len(list.Conditions))
	for _, c := range list.Conditions {
		conds = append(conds, c.clone())
	}
	e.list = ConditionList{PhaseIdBase: list.PhaseIdBase, Conditions: conds}
	e.ledger = NewLedger()
	e.ledger.Restore(entries)
}

// SetClaimConditions 整体替换领取条件列表
// resetEligibility为true时把PhaseIdBase推进到所有历史id之后，
// 等价于清空全部钱包的领取历史；为false时沿用旧base，
// 同一阶段id已累计的supplyClaimed原样继承
func (e *Engine) SetClaimConditions(conds []*ClaimCondition, resetEligibility bool) error {
	for i := 1; i < len(conds); i++ {
		if conds[i].StartTimestamp <= conds[i-1].StartTimestamp {
			return ErrInvalidTimestamps
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	newBase := e.list.PhaseIdBase
	if resetEligibility {
		newBase += int64(e.list.Count())
	}

	newConds := make([]*ClaimCondition, 0, len(conds))
	for i, c := range conds {
		nc := c.clone()
		if nc.PricePerToken.Sign() < 0 {
			return errors.Wrap(ErrInvalidCurrencyOrPrice, "negative price")
		}
		nc.SupplyClaimed = 0
		if !resetEligibility && i < e.list.Count() {
			// 阶段id不变，已发出去的量继续计数
			nc.SupplyClaimed = e.list.Conditions[i].SupplyClaimed
		}
		newConds = append(newConds, nc)
	}

	e.list = ConditionList{PhaseIdBase: newBase, Conditions: newConds}

	if e.bus != nil {
		e.bus.Publish(ConditionsUpdatedEventType, ConditionsUpdatedEvent{
			PhaseIdBase:      newBase,
			Conditions:       e.snapshotLocked(),
			ResetEligibility: resetEligibility,
		})
	}
	return nil
}

// ActiveConditionId 当前生效的阶段id，最早的阶段还没开始时返回ErrNotStarted
func (e *Engine) ActiveConditionId() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.list.activeIndex(e.now().Unix())
	if idx < 0 {
		return 0, ErrNotStarted
	}
	return e.list.PhaseIdBase + int64(idx), nil
}

func (e *Engine) ConditionById(phaseId int64) (*ClaimCondition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.list.indexOf(phaseId)
	if idx < 0 {
		return nil, ErrConditionNotFound
	}
	return e.list.Conditions[idx].clone(), nil
}

func (e *Engine) ConditionByIndex(index int) (*ClaimCondition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= e.list.Count() {
		return nil, ErrIndexOutOfRange
	}
	return e.list.Conditions[index].clone(), nil
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.Count()
}

func (e *Engine) PhaseIdBase() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.PhaseIdBase
}

// Conditions 当前列表快照
func (e *Engine) Conditions() []*ClaimCondition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() []*ClaimCondition {
	out := make([]*ClaimCondition, 0, e.list.Count())
	for _, c := range e.list.Conditions {
		out = append(out, c.clone())
	}
	return out
}

// ClaimTimestamps 钱包在该阶段的最近领取时间和下次可领取时间
// 没领取过时两个值都为0
func (e *Engine) ClaimTimestamps(phaseId int64, wallet common.Address) (lastClaimAt, nextValidClaimAt int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.list.indexOf(phaseId)
	if idx < 0 {
		return 0, 0, ErrConditionNotFound
	}
	last, ok := e.ledger.LastClaimAt(phaseId, wallet)
	if !ok {
		return 0, 0, nil
	}
	return last, last + e.list.Conditions[idx].WaitTimeBetweenClaims, nil
}

// WalletClaimed 钱包在该阶段的累计领取数量
func (e *Engine) WalletClaimed(phaseId int64, wallet common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.WalletClaimed(phaseId, wallet)
}

// VerifyClaim 只读预检，覆盖数量、配额、币种价格、供应量和冷却时间
// 白名单部分由VerifyAllowlist单独校验
func (e *Engine) VerifyClaim(phaseId int64, claimer common.Address, quantity uint64, currency common.Address, pricePerToken, attachedValue *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.list.indexOf(phaseId)
	if idx < 0 {
		return ErrConditionNotFound
	}
	cond := e.list.Conditions[idx]
	if err := e.checkEligibility(cond, phaseId, claimer, quantity, currency, pricePerToken, attachedValue); err != nil {
		return err
	}
	return e.checkCooldown(cond, phaseId, claimer, e.now().Unix())
}

// VerifyAllowlist 只读校验白名单证明，返回是否有效及叶子下标
func (e *Engine) VerifyAllowlist(phaseId int64, claimer common.Address, quantity uint64, proof *AllowlistProof) (bool, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.list.indexOf(phaseId)
	if idx < 0 {
		return false, 0, ErrConditionNotFound
	}
	if err := e.checkAllowlist(e.list.Conditions[idx], phaseId, claimer, quantity, proof); err != nil {
		return false, 0, err
	}
	if proof == nil {
		return true, 0, nil
	}
	return true, proof.LeafIndex, nil
}

// Claim 唯一的领取入口
// 检查、收款、铸造、落账在同一临界区内完成；任何一步失败则账本不动，
// 后续请求看到的状态与这次请求从未发生过一致
func (e *Engine) Claim(ctx context.Context, req *ClaimRequest) (*ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	idx := e.list.activeIndex(now)
	if idx < 0 {
		return nil, ErrNotStarted
	}
	phaseId := e.list.PhaseIdBase + int64(idx)
	cond := e.list.Conditions[idx]

	receiver := req.Receiver
	if receiver == (common.Address{}) {
		receiver = req.Claimer
	}

	if err := e.checkEligibility(cond, phaseId, req.Claimer, req.Quantity, req.Currency, req.PricePerToken, req.AttachedValue); err != nil {
		return nil, err
	}
	if err := e.checkAllowlist(cond, phaseId, req.Claimer, req.Quantity, req.Proof); err != nil {
		return nil, err
	}
	if err := e.checkCooldown(cond, phaseId, req.Claimer, now); err != nil {
		return nil, err
	}

	// 协作方调用放在落账之前：收款或铸造失败时这次请求等于没发生
	totalPrice := new(big.Int).Mul(cond.PricePerToken, new(big.Int).SetUint64(req.Quantity))
	if totalPrice.Sign() > 0 {
		if err := e.payment.Collect(ctx, req.Claimer, req.Currency, totalPrice, req.AttachedValue); err != nil {
			return nil, errors.Wrap(err, "collect payment")
		}
	}
	mint, err := e.minter.Mint(ctx, receiver, req.Quantity)
	if err != nil {
		return nil, errors.Wrap(err, "mint")
	}

	leafIndex := int64(-1)
	if cond.HasAllowlist() && req.Proof != nil && req.Proof.MaxQuantity > 0 {
		leafIndex = int64(req.Proof.LeafIndex)
	}
	cond.SupplyClaimed += req.Quantity
	e.ledger.record(phaseId, req.Claimer, req.Quantity, now, leafIndex)

	if e.bus != nil {
		e.bus.Publish(ClaimedEventType, ClaimedEvent{
			PhaseId:      phaseId,
			Claimer:      req.Claimer,
			Receiver:     receiver,
			FirstTokenId: mint.FirstTokenId,
			Quantity:     req.Quantity,
		})
	}

	return &ClaimResult{
		PhaseId:      phaseId,
		FirstTokenId: mint.FirstTokenId,
		Quantity:     req.Quantity,
		TxHash:       mint.TxHash,
		ClaimedAt:    now,
	}, nil
}

// exceedsCap used已占量加上quantity是否超出cap，cap为0表示不限量
func exceedsCap(used, quantity, cap uint64) bool {
	if cap == 0 {
		return false
	}
	return used >= cap || quantity > cap-used
}

func (e *Engine) checkEligibility(cond *ClaimCondition, phaseId int64, claimer common.Address, quantity uint64, currency common.Address, pricePerToken, attachedValue *big.Int) error {
	if quantity == 0 {
		return ErrInvalidQuantity
	}
	if !cond.HasAllowlist() && exceedsCap(e.ledger.WalletClaimed(phaseId, claimer), quantity, cond.QuantityLimitPerWallet) {
		return ErrInvalidQuantity
	}
	if currency != cond.Currency || pricePerToken == nil || pricePerToken.Cmp(cond.PricePerToken) != 0 {
		return ErrInvalidCurrencyOrPrice
	}
	if currency == NativeToken {
		// 原生代币必须足额随单附带，不多不少
		total := new(big.Int).Mul(cond.PricePerToken, new(big.Int).SetUint64(quantity))
		attached := attachedValue
		if attached == nil {
			attached = new(big.Int)
		}
		if attached.Cmp(total) != 0 {
			return ErrInvalidCurrencyOrPrice
		}
	}
	if exceedsCap(cond.SupplyClaimed, quantity, cond.MaxClaimableSupply) {
		return ErrExceedMaxSupply
	}
	return nil
}

func (e *Engine) checkAllowlist(cond *ClaimCondition, phaseId int64, claimer common.Address, quantity uint64, proof *AllowlistProof) error {
	if !cond.HasAllowlist() {
		return nil
	}
	if proof == nil {
		return ErrNotInWhitelist
	}
	leaf := LeafHash(proof.LeafIndex, claimer, proof.MaxQuantity)
	if !VerifyProof(leaf, proof.Proof, cond.MerkleRoot) {
		return ErrNotInWhitelist
	}
	if proof.MaxQuantity > 0 {
		used := e.ledger.LeafClaimed(phaseId, proof.LeafIndex)
		if used >= proof.MaxQuantity {
			return ErrProofClaimed
		}
		if quantity > proof.MaxQuantity-used {
			return ErrInvalidQuantityProof
		}
	} else if exceedsCap(e.ledger.WalletClaimed(phaseId, claimer), quantity, cond.QuantityLimitPerWallet) {
		// 叶子不带配额时退回到阶段的每钱包上限
		return ErrInvalidQuantity
	}
	return nil
}

func (e *Engine) checkCooldown(cond *ClaimCondition, phaseId int64, claimer common.Address, now int64) error {
	last, ok := e.ledger.LastClaimAt(phaseId, claimer)
	if !ok {
		return nil
	}
	if cond.WaitTimeBetweenClaims > math.MaxInt64-last {
		return ErrCannotClaimYet
	}
	if next := last + cond.WaitTimeBetweenClaims; now < next {
		return errors.Wrapf(ErrCannotClaimYet, "next valid claim at %d", next)
	}
	return nil
}
