package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/proximity"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/refdata"
)

var refcheckCmd = &cobra.Command{
	Use:   "refcheck",
	Short: "Validate the reference registry and report grid occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		refs, err := refdata.LoadFile(cfg.Reference.Path, cfg.Reference.LatCol, cfg.Reference.LonCol)
		if err != nil {
			return err
		}

		ix := proximity.NewIndex(refs, proximity.DefaultTolerance)
		fmt.Printf("reference locations: %d\n", len(refs))
		fmt.Printf("indexed locations:   %d\n", ix.Len())
		fmt.Printf("occupied grid cells: %d\n", ix.Cells())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refcheckCmd)
}
