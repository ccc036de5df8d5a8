package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborintel/portcost/pkg/client"
)

func newEstimateCmd(opts *RootOptions) *cobra.Command {
	var (
		port       string
		vesselName string
		voyage     string
		grt        float64
		loa        float64
		draft      float64
		shifting   bool
		vesselType string
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate port-call disbursement costs for a vessel",
		Long:  "Submit a vessel specification and print the synthesized cost breakdown\nas JSON.  Mode \"fda\" returns the full itemized breakdown, \"quotation\"\na condensed one with minor items rolled up.",
		Example: `  portcost estimate --port "Map Ta Phut" --grt 4626 --loa 112 --draft 6.5 --shifting
  portcost estimate --port "Laem Chabang" --grt 95000 --loa 330 --mode quotation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.EstimateRequest{
				Port:       port,
				VesselName: vesselName,
				Voyage:     voyage,
				GRT:        grt,
				LOA:        loa,
				IsShifting: shifting,
				VesselType: vesselType,
				Mode:       mode,
			}
			if cmd.Flags().Changed("draft") {
				req.Draft = &draft
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			api := client.New(opts.ServerAddr, client.WithTimeout(opts.Timeout))
			est, err := api.Estimate(ctx, req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(est, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "port of call (required)")
	cmd.Flags().StringVar(&vesselName, "vessel-name", "", "vessel name")
	cmd.Flags().StringVar(&voyage, "voyage", "", "voyage reference")
	cmd.Flags().Float64Var(&grt, "grt", 0, "gross registered tonnage (required)")
	cmd.Flags().Float64Var(&loa, "loa", 0, "length overall in meters (required)")
	cmd.Flags().Float64Var(&draft, "draft", 0, "draft in meters")
	cmd.Flags().BoolVar(&shifting, "shifting", false, "vessel shifts berths during the call")
	cmd.Flags().StringVar(&vesselType, "vessel-type", "", "vessel type, e.g. bulk carrier")
	cmd.Flags().StringVar(&mode, "mode", "fda", `estimate mode: "fda" or "quotation"`)
	_ = cmd.MarkFlagRequired("port")
	_ = cmd.MarkFlagRequired("grt")
	_ = cmd.MarkFlagRequired("loa")

	return cmd
}
