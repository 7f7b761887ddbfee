package types

// ClaimRequest 领取请求
// PricePerToken/AttachedValue为wei十进制字符串
type ClaimRequest struct {
	Claimer       string   `json:"claimer" binding:"required,eth_addr"`
	Receiver      string   `json:"receiver" binding:"omitempty,eth_addr"`
	Quantity      uint64   `json:"quantity" binding:"required,gt=0"`
	Currency      string   `json:"currency" binding:"required,eth_addr"`
	PricePerToken string   `json:"price_per_token" binding:"required,wei"`
	AttachedValue string   `json:"attached_value" binding:"omitempty,wei"`
	Proof         []string `json:"proof"`
	LeafIndex     uint64   `json:"leaf_index"`
	MaxQuantity   uint64   `json:"max_quantity"`
}

type ClaimResponse struct {
	RecordId     string `json:"record_id"`
	PhaseId      int64  `json:"phase_id"`
	FirstTokenId uint64 `json:"first_token_id"`
	Quantity     uint64 `json:"quantity"`
	TxHash       string `json:"tx_hash"`
	ClaimedAt    int64  `json:"claimed_at"`
}

// VerifyRequest 只读预检请求，不落任何状态
type VerifyRequest struct {
	PhaseId       int64    `json:"phase_id" binding:"gte=0"`
	Claimer       string   `json:"claimer" binding:"required,eth_addr"`
	Quantity      uint64   `json:"quantity" binding:"required,gt=0"`
	Currency      string   `json:"currency" binding:"required,eth_addr"`
	PricePerToken string   `json:"price_per_token" binding:"required,wei"`
	AttachedValue string   `json:"attached_value" binding:"omitempty,wei"`
	Proof         []string `json:"proof"`
	LeafIndex     uint64   `json:"leaf_index"`
	MaxQuantity   uint64   `json:"max_quantity"`
}

type VerifyResponse struct {
	Eligible       bool   `json:"eligible"`
	Reason         string `json:"reason,omitempty"`
	AllowlistValid bool   `json:"allowlist_valid"`
	LeafIndex      uint64 `json:"leaf_index"`
}

// ConditionParam 安装条件列表时的单个阶段
type ConditionParam struct {
	StartTimestamp         int64  `json:"start_timestamp" binding:"required,gt=0"`
	MaxClaimableSupply     uint64 `json:"max_claimable_supply"`
	QuantityLimitPerWallet uint64 `json:"quantity_limit_per_wallet"`
	WaitTimeBetweenClaims  int64  `json:"wait_time_between_claims" binding:"gte=0"`
	MerkleRoot             string `json:"merkle_root"`
	PricePerToken          string `json:"price_per_token" binding:"omitempty,wei"`
	Currency               string `json:"currency" binding:"required,eth_addr"`
}

type SetConditionsRequest struct {
	Conditions       []ConditionParam `json:"conditions" binding:"dive"`
	ResetEligibility bool             `json:"reset_eligibility"`
}

type SetConditionsResponse struct {
	PhaseIdBase int64   `json:"phase_id_base"`
	PhaseIds    []int64 `json:"phase_ids"`
}

// ConditionView 对外展示的阶段信息
type ConditionView struct {
	PhaseId                int64  `json:"phase_id"`
	StartTimestamp         int64  `json:"start_timestamp"`
	MaxClaimableSupply     uint64 `json:"max_claimable_supply"`
	SupplyClaimed          uint64 `json:"supply_claimed"`
	QuantityLimitPerWallet uint64 `json:"quantity_limit_per_wallet"`
	WaitTimeBetweenClaims  int64  `json:"wait_time_between_claims"`
	MerkleRoot             string `json:"merkle_root"`
	PricePerToken          string `json:"price_per_token"`
	PriceInEther           string `json:"price_in_ether"`
	Currency               string `json:"currency"`
}

type ActiveConditionResponse struct {
	PhaseId   int64          `json:"phase_id"`
	Condition *ConditionView `json:"condition"`
}

type ClaimTimestampResponse struct {
	LastClaimAt      int64 `json:"last_claim_at"`
	NextValidClaimAt int64 `json:"next_valid_claim_at"`
}

// AllowlistEntryParam 白名单成员，MaxQuantity为0表示不带独立配额
type AllowlistEntryParam struct {
	Wallet      string `json:"wallet" binding:"required,eth_addr"`
	MaxQuantity uint64 `json:"max_quantity"`
}

type SetAllowlistRequest struct {
	PhaseId int64                 `json:"phase_id" binding:"gte=0"`
	Entries []AllowlistEntryParam `json:"entries" binding:"required,min=1,dive"`
}

type SetAllowlistResponse struct {
	PhaseId    int64  `json:"phase_id"`
	MerkleRoot string `json:"merkle_root"`
	LeafCount  int    `json:"leaf_count"`
}

type AllowlistProofResponse struct {
	PhaseId     int64    `json:"phase_id"`
	LeafIndex   uint64   `json:"leaf_index"`
	Wallet      string   `json:"wallet"`
	MaxQuantity uint64   `json:"max_quantity"`
	Proof       []string `json:"proof"`
}

type ClaimRecordView struct {
	RecordId     string `json:"record_id"`
	PhaseId      int64  `json:"phase_id"`
	Claimer      string `json:"claimer"`
	Receiver     string `json:"receiver"`
	Quantity     uint64 `json:"quantity"`
	FirstTokenId uint64 `json:"first_token_id"`
	TxHash       string `json:"tx_hash"`
	Status       string `json:"status"`
	ClaimedAt    int64  `json:"claimed_at"`
}

type ClaimRecordsResponse struct {
	Total   int64             `json:"total"`
	Records []ClaimRecordView `json:"records"`
}
