package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/storeapi"
)

const statusTimeout = 20 * time.Second

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch the live store status with the saved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			settings, err := rt.settingsRepo().Get(ctx)
			if err != nil {
				return err
			}
			if !settings.Configured() {
				return fmt.Errorf("store endpoint: %w", domain.ErrNotConfigured)
			}

			status, err := storeapi.NewClient(rt.logger).FetchStoreStatus(ctx, storeapi.Endpoint{
				BaseURL: settings.EndpointURL,
				APIKey:  settings.APIKey,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "FERMÉ"
			if status.IsOpen {
				state = "OUVERT"
			}
			fmt.Fprintf(out, "%-18s %s (%s)\n", "Boutique:", state, status.CurrentStatus)
			fmt.Fprintf(out, "%-18s %s %s\n", "Heure:", status.CurrentDayName, status.CurrentTime)
			if status.NextOpeningFormatted != nil {
				fmt.Fprintf(out, "%-18s %s\n", "Réouverture:", *status.NextOpeningFormatted)
			}
			if status.ExpressDateFormatted != nil {
				fmt.Fprintf(out, "%-18s %s\n", "Express:", *status.ExpressDateFormatted)
			}
			if status.StoreHours != "" {
				fmt.Fprintf(out, "%-18s %s\n", "Horaires:", strings.TrimSpace(status.StoreHours))
			}
			if status.StoreAddress != "" {
				fmt.Fprintf(out, "%-18s %s\n", "Adresse:", status.StoreAddress)
			}
			return nil
		},
	}
}
