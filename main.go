package main

import (
	"flag"
	_ "net/http/pprof"

	"github.com/zeromicro/go-zero/core/threading"

	"github.com/locey/NFTDrop/api/router"
	"github.com/locey/NFTDrop/app"
	"github.com/locey/NFTDrop/config"
	"github.com/locey/NFTDrop/monitor"
	"github.com/locey/NFTDrop/service/svc"
)

const (
	defaultConfigPath = "./config/config.toml"
)

func main() {
	conf := flag.String("conf", defaultConfigPath, "conf file path")
	flag.Parse()
	c, err := config.UnmarshalConfig(*conf)
	if err != nil {
		panic(err)
	}

	if c.Chain.ChainID == 0 || c.Chain.RPCEndpoint == "" {
		panic("invalid chain config")
	}

	serverCtx, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	// Initialize router
	r := router.NewRouter(serverCtx)

	// 监听链上TokensClaimed事件，确认领取流水
	threading.GoSafe(func() {
		monitor.StartClaimMonitor(serverCtx)
	})

	app, err := app.NewPlatform(c, r, serverCtx)
	if err != nil {
		panic(err)
	}
	app.Start()
}
