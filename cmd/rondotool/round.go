package main

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rondochain/rondo/common/codec"
	"github.com/rondochain/rondo/common/db"
	"github.com/rondochain/rondo/common/log"
	"github.com/rondochain/rondo/consensus"
)

type storeConfig struct {
	Dir     string `mapstructure:"store_dir"`
	Backend string `mapstructure:"store_backend"`
	Name    string `mapstructure:"store_name"`
}

func newViper(prefix string) *viper.Viper {
	vc := viper.New()
	vc.SetEnvPrefix(prefix)
	vc.AutomaticEnv()
	vc.SetDefault("store_dir", ".")
	vc.SetDefault("store_backend", string(db.GoLevelDBBackend))
	vc.SetDefault("store_name", "consensus")
	return vc
}

func openManager(vc *viper.Viper) (*consensus.Manager, error) {
	var cfg storeConfig
	if err := mapstructure.Decode(vc.AllSettings(), &cfg); err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.Dir, cfg.Backend, cfg.Name)
	if err != nil {
		return nil, err
	}
	return consensus.NewManager(
		consensus.NewDefaultConfig(), database, nil, log.GlobalLogger())
}

func printRound(round *consensus.Round) error {
	bs, err := codec.JSON.MarshalToBytes(round)
	if err != nil {
		return err
	}
	fmt.Println(string(bs))
	return nil
}

func NewRoundCmd(name string) *cobra.Command {
	vc := newViper("rondo")
	rootCmd := &cobra.Command{
		Use:   name,
		Short: "Inspect stored consensus rounds",
	}
	flags := rootCmd.PersistentFlags()
	flags.String("store_dir", ".", "Consensus store directory")
	flags.String("store_backend", string(db.GoLevelDBBackend), "Store backend type")
	flags.String("store_name", "consensus", "Store name")
	vc.BindPFlags(flags)

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current round",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(vc)
			if err != nil {
				return err
			}
			round, err := mgr.GetCurrentRound()
			if err != nil {
				return err
			}
			return printRound(round)
		},
	}
	getCmd := &cobra.Command{
		Use:   "get NUMBER",
		Short: "Print the round with the number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			mgr, err := openManager(vc)
			if err != nil {
				return err
			}
			round, err := mgr.GetRound(n)
			if err != nil {
				return err
			}
			return printRound(round)
		},
	}
	rootCmd.AddCommand(currentCmd, getCmd)
	return rootCmd
}

func NewLIBCmd(name string) *cobra.Command {
	vc := newViper("rondo")
	cmd := &cobra.Command{
		Use:   name,
		Short: "Print the last irreversible block height",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(vc)
			if err != nil {
				return err
			}
			height, err := mgr.LIBHeight()
			if err != nil {
				return err
			}
			fmt.Println(height)
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.String("store_dir", ".", "Consensus store directory")
	flags.String("store_backend", string(db.GoLevelDBBackend), "Store backend type")
	flags.String("store_name", "consensus", "Store name")
	vc.BindPFlags(flags)
	return cmd
}
