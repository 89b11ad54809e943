package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/export"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/handler"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/storage"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/config"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/rules"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/security"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			db, err := storage.ConnectDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an admin API key and the hash to configure",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := security.GenerateAPIKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API key:            %s\n", key)
			fmt.Fprintf(out, "ADMIN_API_KEY_HASH=%s\n", hash)
			fmt.Fprintln(out, "Save the key now, it cannot be recovered from the hash.")
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var from, to, out, phone string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write registered receipts to an xlsx file",
		Long: `Write registered receipts to an xlsx file.

Examples:
  receiptctl export --from 2024-06-01 --to 2024-06-30 --out junio.xlsx
  receiptctl export --phone 593980000001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := handler.DateRange(from, to)
			if err != nil {
				return err
			}
			filter.Phone = phone

			cfg := config.LoadConfig()
			db, err := storage.ConnectDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			receipts, err := storage.NewReceiptRepository(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := export.WriteReceipts(f, receipts); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d receipts to %s\n", len(receipts), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last payment date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&phone, "phone", "", "only receipts sent by this contact")
	cmd.Flags().StringVarP(&out, "out", "o", "comprobantes.xlsx", "output file")

	return cmd
}

func checkRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-rules [path]",
		Short: "Validate a rules YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rules.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fake threshold: %d%%\n", r.FakeConfidenceThreshold)
			fmt.Fprintf(out, "beneficiaries:  %d\n", len(r.Beneficiaries))
			fmt.Fprintf(out, "services:       %d\n", len(r.Services))
			return nil
		},
	}
}
