package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var flags *pflag.FlagSet

var (
	cfgPathFlag string
	outFlag     string
	seedFlag    int64
)

func init() {
	resetFlags()
}

// Explicitly define a method to facilitate tests
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVarP(&cfgPathFlag, "config", "c", "",
		"vizdemo config file, defaults to vizdemo_config.yaml in $VIZDEMO_CFG_PATH")
	flags.StringVarP(&outFlag, "out", "o", "./data.json",
		"where gen-data writes the dashboard data")
	flags.Int64VarP(&seedFlag, "seed", "s", 0,
		"gen-data random seed, 0 picks one from the clock")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			panic(fmt.Errorf("Could not find flag '%s' to attach to command '%s'", name, cmd.Name()))
		}
	}
}

var mainCmd = &cobra.Command{Use: "vizdemo"}

func main() {

	mainCmd.AddCommand(startCMD())
	mainCmd.AddCommand(genDataCMD())

	if mainCmd.Execute() != nil {
		os.Exit(1)
	}
}
