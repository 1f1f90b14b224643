package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the latest dispatch outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			outcomes, err := repository.NewGormHistoryRepo(rt.db).List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(outcomes) == 0 {
				fmt.Fprintln(out, "Aucun message envoyé")
				return nil
			}

			loc := rt.cfg.Location()
			fmt.Fprintf(out, "%-17s %-16s %-10s %-7s %s\n", "DATE", "NUMERO", "CANAL", "RESULT", "STATUT")
			fmt.Fprintln(out, strings.Repeat("-", 72))
			for _, o := range outcomes {
				fmt.Fprintf(out, "%-17s %-16s %-10s %-7s %s\n",
					o.Timestamp.In(loc).Format("02/01/2006 15:04"),
					domain.FormatForDisplay(o.PhoneNumber),
					o.Channel.DisplayName(),
					o.Result,
					o.StoreStatus,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", domain.MaxHistoryEntries, "Number of entries to print")

	return cmd
}
