// Command seattlehumus announces litter box weigh-ins on Telegram.
//
// Usage:
//
//	seattlehumus watch            poll and announce new readings
//	seattlehumus latest           announce the latest reading per cat once
//	seattlehumus history -n 20    show recent notifications from the audit log
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"seattlehumus/internal/app"
	"seattlehumus/internal/config"
)

func main() {
	config.LoadDotEnv()

	var cfgPath string
	root := &cobra.Command{
		Use:           "seattlehumus",
		Short:         "Litter box weight notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv(config.EnvConfigPath), "optional YAML or JSON config file")

	root.AddCommand(watchCmd(&cfgPath))
	root.AddCommand(latestCmd(&cfgPath))
	root.AddCommand(historyCmd(&cfgPath))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		cancel()
		os.Exit(1)
	}
}

func newApp(cfgPath string) (*app.App, error) {
	return app.New(strings.TrimSpace(cfgPath), os.LookupEnv)
}

func watchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the litter box and announce new weigh-ins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			return a.Watch(cmd.Context())
		},
	}
}

func latestCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Announce the latest weight of each cat once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			return a.Latest(cmd.Context())
		},
	}
}

func historyCmd(cfgPath *string) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent notifications from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := app.History(cmd.Context(), strings.TrimSpace(*cfgPath), os.LookupEnv, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tKIND\tCAT\tWEIGHT\tDEVICE\tDETAIL")
			for _, r := range recs {
				detail := r.Text
				if r.Kind != "sent" {
					detail = r.Stage + ": " + r.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
					r.At.Local().Format("2006-01-02 15:04"), r.Kind, r.Cat, r.Weight, r.Device, detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
