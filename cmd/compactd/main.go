package main

import (
	"os"

	"github.com/compactchain/compactd/cmd/compactd/commands"
	"github.com/compactchain/compactd/config"
	"github.com/compactchain/compactd/libs/log"
)

func main() {
	conf := config.DefaultConfig()

	logger, err := log.NewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)
	if err != nil {
		panic(err)
	}

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeStartCommand(conf, logger),
		commands.MakeShowHeightCommand(conf, logger),
		commands.VersionCmd,
	)

	if err := rcmd.Execute(); err != nil {
		os.Exit(1)
	}
}
