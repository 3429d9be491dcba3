package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/pkg/model"
)

// NewChannelsCmd creates the channels command.
func NewChannelsCmd() *cobra.Command {
	var url, systemID string
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels available for mirroring",
		Long:  "List the channel labels the catalog offers to this system, grouped by product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.URL = url
			}
			if cmd.Flags().Changed("systemid") {
				cfg.SystemID = systemID
			}
			client, err := newCatalogClient(cfg, newHTTPClient(cfg))
			if err != nil {
				return err
			}
			if err := client.CheckAuth(cmd.Context()); err != nil {
				return err
			}
			families, err := client.ChannelFamilies(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list channels: %w", err)
			}
			printChannels(cmd.OutOrStdout(), families, cfg.Settings.SkipProducts)
			return nil
		},
	}
	cmd.Flags().StringVarP(&url, "url", "U", "", "catalog URL")
	cmd.Flags().StringVarP(&systemID, "systemid", "s", "", "system id file")
	return cmd
}

func printChannels(w io.Writer, families []model.ChannelFamily, skip []string) {
	offered := offeredChannels(families, skip)
	byProduct := make(map[string][]string)
	for label, product := range offered {
		byProduct[product] = append(byProduct[product], label)
	}
	products := make([]string, 0, len(byProduct))
	for p := range byProduct {
		products = append(products, p)
	}
	sort.Strings(products)

	_, _ = fmt.Fprintln(w, "List of channels:")
	for _, p := range products {
		labels := byProduct[p]
		sort.Strings(labels)
		_, _ = fmt.Fprintf(w, "\nProduct : %s\n", p)
		for _, l := range labels {
			_, _ = fmt.Fprintf(w, "    %s\n", l)
		}
	}
}
