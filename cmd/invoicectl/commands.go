package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/roster"
)

func newNextNumberCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "next-number",
		Short: "Print the suggested first invoice number of the next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := opts.open(cmd.Context(), "next-number")
			if err != nil {
				return err
			}
			defer a.close()

			next, err := a.service.NextInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}

func newGenerateCommand(opts *options) *cobra.Command {
	var req invoicing.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create invoices for every billable member without an open invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := opts.open(cmd.Context(), "generate")
			if err != nil {
				return err
			}
			defer a.close()

			if req.FirstInvoiceNumber == "" {
				next, err := a.service.NextInvoiceNumber(ctx)
				if err != nil {
					return err
				}
				req.FirstInvoiceNumber = strconv.FormatInt(next, 10)
			}

			summary, err := a.service.Generate(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FirstInvoiceNumber, "first", "", "first invoice number (default: next free number)")
	cmd.Flags().StringVar(&req.InvoiceDate, "invoice-date", "", "invoice date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.DueDate, "due-date", "", "due date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("invoice-date")
	_ = cmd.MarkFlagRequired("due-date")
	return cmd
}

func newExportCommand(opts *options) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export open line items and close the exported invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx, a, err := opts.open(cmd.Context(), "export")
			if err != nil {
				return err
			}
			defer a.close()

			result, runErr := a.service.Export(ctx, f)
			if result == nil {
				return runErr
			}
			path := out
			if path == "" {
				path = result.FileName
			}
			// Write the file even when closing failed; the rows are final.
			if err := writeOutput(path, result.Body); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			if path != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s, closed %d invoices.\n",
					result.Rows, path, result.InvoicesClosed)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default: invoices.<format>)")
	return cmd
}

func newDeleteAllCommand(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every invoice and line item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := opts.open(cmd.Context(), "delete-all")
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.service.DeleteAllInvoices(ctx, yes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d invoices and %d invoice line items.\n",
				result.InvoicesDeleted, result.LineItemsDeleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all invoices")
	return cmd
}

func newExportMembersCommand(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-members",
		Short: "Write the membership log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := opts.open(cmd.Context(), "export-members")
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.service.ExportMembershipLog(ctx)
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = result.FileName
			}
			return writeOutput(path, result.Body)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default: membership.csv)")
	return cmd
}

func newSeedCommand(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add the members of a YAML or CSV roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := roster.LoadFile(file)
			if err != nil {
				return err
			}
			ctx, a, err := opts.open(cmd.Context(), "seed")
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.service.SeedMembers(ctx, members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d members, skipped %d already present.\n",
				result.Created, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "roster file (.yaml or .csv)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
