package commands

import (
	"github.com/chaincraft/chaincraft/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for chaincraft
var RootCmd = &cobra.Command{
	Use:              "chaincraft",
	Short:            "chaincraft gossip node",
	TraverseChildren: true,
}
