package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"vizdemo/common"
	"vizdemo/core/config"
	"vizdemo/node"
)

func start(cmd *cobra.Command) error {
	lc, err := config.InitLocalConfig(cmd)
	if err != nil {
		return err
	}

	nodeInstance := node.VizNode{}
	if err = nodeInstance.Init(lc); err != nil {
		return err
	}
	log := common.GetLogger(common.MODULE_NODE)
	if lc.Path != "" {
		log.Infof("vizdemo start with %s", lc.Path)
	} else {
		log.Infof("vizdemo start with built-in defaults")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Infof("received %s, stopping", s)
		nodeInstance.Stop()
	}()

	return nodeInstance.Start()
}

func startCMD() *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "start vizdemo",
		Long:  "serve the regression demos, the kpi dashboard and the static pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return start(cmd)
		},
	}
	attachFlags(startCmd, []string{"config"})
	return startCmd
}
