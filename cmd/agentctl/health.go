package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the backend gateway, core and data-tools services",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			status, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check %s: %w", client.BaseURL(), err)
			}
			if err := render(cmd.OutOrStdout(), format, status, func(w io.Writer) error {
				fmt.Fprintf(w, "backend:    %s\n", client.BaseURL())
				fmt.Fprintf(w, "gateway:    %s\n", okText(status.GatewayOK))
				fmt.Fprintf(w, "core:       %s\n", okText(status.CoreOK))
				fmt.Fprintf(w, "data tools: %s\n", okText(status.DataToolsOK))
				fmt.Fprintf(w, "ttfb:       %d ms\n", status.TTFBMs)
				return nil
			}); err != nil {
				return err
			}
			if !status.Healthy() {
				return errors.New("backend is degraded")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	return cmd
}

func okText(ok bool) string {
	if ok {
		return "ok"
	}
	return "down"
}
