package drop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DropSchedule 条件列表元信息，单行记录
type DropSchedule struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PhaseIdBase int64     `gorm:"not null" json:"phase_id_base"`
	Count       int       `gorm:"not null" json:"count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DropSchedule) TableName() string {
	return DropScheduleTableName()
}

func DropScheduleTableName() string {
	return "drop_schedule"
}

// DropClaimCondition 领取条件，主键是永久阶段id而不是列表下标
type DropClaimCondition struct {
	PhaseId                int64     `gorm:"primaryKey;autoIncrement:false" json:"phase_id"`
	Idx                    int       `gorm:"not null" json:"idx"` // 当前列表里的下标
	StartTimestamp         int64     `gorm:"not null" json:"start_timestamp"`
	MaxClaimableSupply     uint64    `json:"max_claimable_supply"`      // 0表示不限量
	SupplyClaimed          uint64    `json:"supply_claimed"`            // 该阶段累计发放
	QuantityLimitPerWallet uint64    `json:"quantity_limit_per_wallet"` // 0表示不限
	WaitTimeBetweenClaims  int64     `json:"wait_time_between_claims"`  // 秒
	MerkleRoot             string    `gorm:"size:66" json:"merkle_root"`
	PricePerToken          string    `gorm:"size:78" json:"price_per_token"` // wei十进制字符串
	Currency               string    `gorm:"size:42" json:"currency"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (DropClaimCondition) TableName() string {
	return DropClaimConditionTableName()
}

func DropClaimConditionTableName() string {
	return "drop_claim_condition"
}

type ClaimStatus string

const (
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusConfirmed ClaimStatus = "confirmed"
)

// DropClaimRecord 每次领取成功的流水
type DropClaimRecord struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	PhaseId      int64       `gorm:"not null;index" json:"phase_id"`
	Claimer      string      `gorm:"size:42;not null;index" json:"claimer"`
	Receiver     string      `gorm:"size:42;not null" json:"receiver"`
	Quantity     uint64      `gorm:"not null" json:"quantity"`
	FirstTokenId uint64      `json:"first_token_id"`
	TxHash       string      `gorm:"size:66;index" json:"tx_hash"`
	Status       ClaimStatus `gorm:"size:20;default:submitted" json:"status"`
	ClaimedAt    time.Time   `json:"claimed_at"`
}

func (r *DropClaimRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (DropClaimRecord) TableName() string {
	return DropClaimRecordTableName()
}

func DropClaimRecordTableName() string {
	return "drop_claim_record"
}

// DropWalletClaim 钱包在某阶段的累计账，引擎重启时从这里恢复
type DropWalletClaim struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	PhaseId         int64  `gorm:"not null;uniqueIndex:uk_phase_wallet" json:"phase_id"`
	Wallet          string `gorm:"size:42;not null;uniqueIndex:uk_phase_wallet" json:"wallet"`
	ClaimedQuantity uint64 `gorm:"not null" json:"claimed_quantity"`
	LastClaimAt     int64  `gorm:"not null" json:"last_claim_at"`
	LeafIndex       int64  `gorm:"default:-1" json:"leaf_index"` // -1表示非白名单领取
}

func (DropWalletClaim) TableName() string {
	return DropWalletClaimTableName()
}

func DropWalletClaimTableName() string {
	return "drop_wallet_claim"
}

// DropAllowlistEntry 白名单成员及其证明
type DropAllowlistEntry struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PhaseId     int64     `gorm:"not null;uniqueIndex:uk_phase_leaf;index:idx_phase_wallet" json:"phase_id"`
	LeafIndex   uint64    `gorm:"not null;uniqueIndex:uk_phase_leaf" json:"leaf_index"`
	Wallet      string    `gorm:"size:42;not null;index:idx_phase_wallet" json:"wallet"`
	MaxQuantity uint64    `json:"max_quantity"` // 0表示叶子不带独立配额
	Proof       string    `gorm:"type:text" json:"proof"` // 十六进制哈希的json数组
	CreatedAt   time.Time `json:"created_at"`
}

func (DropAllowlistEntry) TableName() string {
	return DropAllowlistEntryTableName()
}

func DropAllowlistEntryTableName() string {
	return "drop_allowlist_entry"
}
