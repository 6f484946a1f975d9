package cmd

import (
	"fmt"

	"github.com/kevgathuku/server/internal/version"
	"github.com/spf13/cobra"
)

func NewVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullVersion())
		},
	}
}
