package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/locey/NFTDrop/stores/gdb/drop"
)

const scheduleRowId = 1

// GetSchedule 读取条件列表元信息，还没安装过时返回nil
func (d *Dao) GetSchedule(c context.Context) (*drop.DropSchedule, error) {
	var s drop.DropSchedule
	err := d.DB.WithContext(c).
		Table(drop.DropScheduleTableName()).Where("id = ?", scheduleRowId).First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveClaimConditions 整体替换条件列表，与元信息同一事务
func (d *Dao) SaveClaimConditions(c context.Context, phaseIdBase int64, conds []*drop.DropClaimCondition) error {
	return d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(drop.DropClaimConditionTableName()).Where("1 = 1").Delete(&drop.DropClaimCondition{}).Error; err != nil {
			return err
		}
		if len(conds) > 0 {
			if err := tx.Table(drop.DropClaimConditionTableName()).Create(conds).Error; err != nil {
				return err
			}
		}
		return tx.Table(drop.DropScheduleTableName()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"phase_id_base", "count", "updated_at"}),
		}).Create(&drop.DropSchedule{
			ID:          scheduleRowId,
			PhaseIdBase: phaseIdBase,
			Count:       len(conds),
		}).Error
	})
}

func (d *Dao) GetClaimConditions(c context.Context) ([]drop.DropClaimCondition, error) {
	var conds []drop.DropClaimCondition
	err := d.DB.WithContext(c).
		Table(drop.DropClaimConditionTableName()).Order("idx asc").Find(&conds).Error
	return conds, err
}

// UpdateConditionSupply 领取成功后回写阶段累计发放量
func (d *Dao) UpdateConditionSupply(c context.Context, phaseId int64, supplyClaimed uint64) error {
	return d.DB.WithContext(c).
		Table(drop.DropClaimConditionTableName()).Where("phase_id = ?", phaseId).
		Update("supply_claimed", supplyClaimed).Error
}

// UpsertWalletClaim 钱包累计账，按(阶段id, 钱包)去重
func (d *Dao) UpsertWalletClaim(c context.Context, wc *drop.DropWalletClaim) error {
	return d.DB.WithContext(c).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phase_id"}, {Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"claimed_quantity", "last_claim_at", "leaf_index"}),
	}).Create(wc).Error
}

func (d *Dao) GetWalletClaims(c context.Context) ([]drop.DropWalletClaim, error) {
	var claims []drop.DropWalletClaim
	err := d.DB.WithContext(c).
		Table(drop.DropWalletClaimTableName()).Find(&claims).Error
	return claims, err
}

func (d *Dao) GetWalletClaim(c context.Context, phaseId int64, wallet string) (*drop.DropWalletClaim, error) {
	var wc drop.DropWalletClaim
	err := d.DB.WithContext(c).
		Table(drop.DropWalletClaimTableName()).Where("phase_id = ? and wallet = ?", phaseId, wallet).First(&wc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wc, nil
}

func (d *Dao) CreateClaimRecord(c context.Context, record *drop.DropClaimRecord) error {
	return d.DB.WithContext(c).Create(record).Error
}

// GetClaimRecords 分页查询领取流水，phaseId<0、wallet为空表示不过滤
func (d *Dao) GetClaimRecords(c context.Context, phaseId int64, wallet string, page, pageSize int) ([]drop.DropClaimRecord, int64, error) {
	query := d.DB.WithContext(c).Table(drop.DropClaimRecordTableName())
	if phaseId >= 0 {
		query = query.Where("phase_id = ?", phaseId)
	}
	if wallet != "" {
		query = query.Where("claimer = ?", wallet)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []drop.DropClaimRecord
	err := query.Order("claimed_at desc").
		Limit(pageSize).Offset((page - 1) * pageSize).Find(&records).Error
	return records, total, err
}

// ConfirmClaimRecord 链上监听到事件后把流水标记为已确认
func (d *Dao) ConfirmClaimRecord(c context.Context, txHash string) error {
	return d.DB.WithContext(c).
		Table(drop.DropClaimRecordTableName()).Where("tx_hash = ?", txHash).
		Update("status", drop.ClaimStatusConfirmed).Error
}

// SaveAllowlistEntries 整体替换某阶段的白名单
func (d *Dao) SaveAllowlistEntries(c context.Context, phaseId int64, entries []*drop.DropAllowlistEntry) error {
	return d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(drop.DropAllowlistEntryTableName()).Where("phase_id = ?", phaseId).Delete(&drop.DropAllowlistEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Table(drop.DropAllowlistEntryTableName()).CreateInBatches(entries, 100).Error
	})
}

func (d *Dao) GetAllowlistEntry(c context.Context, phaseId int64, wallet string) (*drop.DropAllowlistEntry, error) {
	var entry drop.DropAllowlistEntry
	err := d.DB.WithContext(c).
		Table(drop.DropAllowlistEntryTableName()).Where("phase_id = ? and wallet = ?", phaseId, wallet).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (d *Dao) GetAllowlistEntries(c context.Context, phaseId int64) ([]drop.DropAllowlistEntry, error) {
	var entries []drop.DropAllowlistEntry
	err := d.DB.WithContext(c).
		Table(drop.DropAllowlistEntryTableName()).Where("phase_id = ?", phaseId).Order("leaf_index asc").Find(&entries).Error
	return entries, err
}
