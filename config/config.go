package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Api   ApiConf   `toml:"api" mapstructure:"api"`
	DB    DBConf    `toml:"db" mapstructure:"db"`
	Chain ChainConf `toml:"chain" mapstructure:"chain"`
	Log   LogConf   `toml:"log" mapstructure:"log"`
}

type ApiConf struct {
	Port     string `toml:"port" mapstructure:"port"`
	AdminKey string `toml:"admin_key" mapstructure:"admin_key"`
}

type DBConf struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type ChainConf struct {
	RPCEndpoint     string `toml:"rpc_endpoint" mapstructure:"rpc_endpoint"`
	ChainID         int64  `toml:"chain_id" mapstructure:"chain_id"`
	DropContract    string `toml:"drop_contract" mapstructure:"drop_contract"`
	PrimarySaleAddr string `toml:"primary_sale_addr" mapstructure:"primary_sale_addr"`
	PrivateKey      string `toml:"private_key" mapstructure:"private_key"`
}

type LogConf struct {
	Level string `toml:"level" mapstructure:"level"`
}

func UnmarshalConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return c, nil
}
