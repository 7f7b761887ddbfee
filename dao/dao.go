package dao

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/locey/NFTDrop/stores/gdb/drop"
)

type Dao struct {
	DB *gorm.DB
}

func NewDao(db *gorm.DB) *Dao {
	return &Dao{DB: db}
}

// NewDB 打开MySQL并建表
func NewDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.AutoMigrate(
		&drop.DropSchedule{},
		&drop.DropClaimCondition{},
		&drop.DropClaimRecord{},
		&drop.DropWalletClaim{},
		&drop.DropAllowlistEntry{},
	); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}
	return db, nil
}
