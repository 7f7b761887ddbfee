package svc

import (
	"context"

	"go.uber.org/zap"

	"github.com/locey/NFTDrop/config"
	"github.com/locey/NFTDrop/contract"
	"github.com/locey/NFTDrop/dao"
	"github.com/locey/NFTDrop/engine"
	"github.com/locey/NFTDrop/event"
	"github.com/locey/NFTDrop/logger/xzap"
)

type ServerCtx struct {
	C      *config.Config
	Dao    *dao.Dao
	Engine *engine.Engine
	Bus    *event.Bus
	Drop   *contract.DropContract
}

func NewServiceContext(c *config.Config) (*ServerCtx, error) {
	xzap.SetUp(c.Log.Level)

	db, err := dao.NewDB(c.DB.DSN)
	if err != nil {
		return nil, err
	}
	d := dao.NewDao(db)

	dropContract, err := contract.NewDropContract(c)
	if err != nil {
		return nil, err
	}
	payment, err := contract.NewPayment(dropContract, c.Chain.PrimarySaleAddr)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	eng := engine.New(engine.Config{
		Minter:  dropContract,
		Payment: payment,
		Bus:     bus,
	})

	serverCtx := &ServerCtx{
		C:      c,
		Dao:    d,
		Engine: eng,
		Bus:    bus,
		Drop:   dropContract,
	}
	if err := serverCtx.restoreEngine(); err != nil {
		return nil, err
	}
	return serverCtx, nil
}

// restoreEngine 启动时从库里恢复条件列表和账本
func (s *ServerCtx) restoreEngine() error {
	ctx := context.Background()

	schedule, err := s.Dao.GetSchedule(ctx)
	if err != nil {
		return err
	}
	if schedule == nil {
		// 还没安装过条件列表
		return nil
	}

	rows, err := s.Dao.GetClaimConditions(ctx)
	if err != nil {
		return err
	}
	conds := make([]*engine.ClaimCondition, 0, len(rows))
	for _, row := range rows {
		conds = append(conds, ConditionFromModel(&row))
	}

	walletclaims, err := s.Dao.GetWalletClaims(ctx)
	if err != nil {
		return err
	}
	entries := make([]engine.LedgerEntry, 0, len(walletclaims))
	for _, wc := range walletclaims {
		entries = append(entries, LedgerEntryFromModel(&wc))
	}

	s.Engine.Restore(engine.ConditionList{
		PhaseIdBase: schedule.PhaseIdBase,
		Conditions:  conds,
	}, entries)

	xzap.WithContext(ctx).Info("engine restored",
		zap.Int64("phase_id_base", schedule.PhaseIdBase),
		zap.Int("conditions", len(conds)),
		zap.Int("wallet_claims", len(walletclaims)))
	return nil
}
