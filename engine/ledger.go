package engine

import "github.com/ethereum/go-ethereum/common"

// Ledger 领取账本
// 所有键都是阶段id而不是列表下标，条件列表整体替换后旧id的历史依然成立
type Ledger struct {
	lastClaimAt   map[int64]map[common.Address]int64
	walletClaimed map[int64]map[common.Address]uint64
	leafClaimed   map[int64]map[uint64]uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		lastClaimAt:   make(map[int64]map[common.Address]int64),
		walletClaimed: make(map[int64]map[common.Address]uint64),
		leafClaimed:   make(map[int64]map[uint64]uint64),
	}
}

// LastClaimAt 钱包在该阶段最近一次成功领取的时间，没领过时ok为false
func (l *Ledger) LastClaimAt(phaseId int64, wallet common.Address) (int64, bool) {
	ts, ok := l.lastClaimAt[phaseId][wallet]
	return ts, ok
}

// WalletClaimed 钱包在该阶段累计领取数量
func (l *Ledger) WalletClaimed(phaseId int64, wallet common.Address) uint64 {
	return l.walletClaimed[phaseId][wallet]
}

// LeafClaimed 白名单叶子在该阶段已消耗的数量
func (l *Ledger) LeafClaimed(phaseId int64, leafIndex uint64) uint64 {
	return l.leafClaimed[phaseId][leafIndex]
}

// record 领取成功后的记账，时间戳、累计量、叶子消耗一起落账
func (l *Ledger) record(phaseId int64, wallet common.Address, quantity uint64, now int64, leafIndex int64) {
	if _, ok := l.lastClaimAt[phaseId]; !ok {
		l.lastClaimAt[phaseId] = make(map[common.Address]int64)
	}
	l.lastClaimAt[phaseId][wallet] = now

	if _, ok := l.walletClaimed[phaseId]; !ok {
		l.walletClaimed[phaseId] = make(map[common.Address]uint64)
	}
	l.walletClaimed[phaseId][wallet] += quantity

	if leafIndex >= 0 {
		if _, ok := l.leafClaimed[phaseId]; !ok {
			l.leafClaimed[phaseId] = make(map[uint64]uint64)
		}
		l.leafClaimed[phaseId][uint64(leafIndex)] += quantity
	}
}

// LedgerEntry 账本快照行，用于启动时从库里恢复
// LeafIndex为-1表示该钱包不是通过白名单叶子领取的
type LedgerEntry struct {
	PhaseId         int64
	Wallet          common.Address
	ClaimedQuantity uint64
	LastClaimAt     int64
	LeafIndex       int64
}

func (l *Ledger) Restore(entries []LedgerEntry) {
	for _, e := range entries {
		if e.ClaimedQuantity == 0 {
			continue
		}
		l.record(e.PhaseId, e.Wallet, e.ClaimedQuantity, e.LastClaimAt, e.LeafIndex)
	}
}
