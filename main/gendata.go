package main

import (
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"vizdemo/common"
	"vizdemo/core/kpi"
)

func genData(out string, seed int64) error {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := kpi.Generate(rand.New(rand.NewSource(seed)))
	if err := d.Save(out); err != nil {
		return err
	}
	common.GetLogger(common.MODULE_KPI).Infof("wrote %s (seed %d)", out, seed)
	return nil
}

func genDataCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen-data",
		Short: "generate dashboard data",
		Long:  "write a random month of sales, asin and buyer data for the kpi dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return genData(outFlag, seedFlag)
		},
	}
	attachFlags(cmd, []string{"out", "seed"})
	return cmd
}
