package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"invoice-desk/internal/access"
	"invoice-desk/internal/config"
	"invoice-desk/internal/invoice"
	"invoice-desk/internal/notion"
	"invoice-desk/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errDenied marks a check-access miss so the process exits non-zero.
var errDenied = errors.New("access denied")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	root := newRootCmd(cfg, stdin)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(cfg *config.Config, stdin io.Reader) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator tools for the invoice desk",
		Long: `ledgerctl inspects the invoice desk's configuration and data.
Settings come from the same environment variables and CONFIG_FILE as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newNextInvoiceCmd(cfg, stdin),
		newCheckAccessCmd(cfg),
		newRevokeSessionsCmd(cfg),
	)
	return root
}

func newNextInvoiceCmd(cfg *config.Config, stdin io.Reader) *cobra.Command {
	var showLast bool
	cmd := &cobra.Command{
		Use:   "next-invoice",
		Short: "Print the next consulting invoice number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Notion.ConsultingDatabaseID == "" {
				return errors.New("NOTION_CONSULTING_DB_ID is required")
			}
			key := cfg.Notion.APIKey
			if key == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Notion API key: ")
				var err error
				key, err = readSecret(stdin)
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("API key cannot be empty")
			}

			client := notion.NewClient(strings.TrimSpace(key),
				notion.WithBaseURL(cfg.Notion.BaseURL),
				notion.WithVersion(cfg.Notion.Version),
				notion.WithHTTPClient(&http.Client{Timeout: cfg.Notion.Timeout}),
				notion.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))),
			)
			seq := invoice.NewSequencer(client, cfg.Notion.ConsultingDatabaseID, invoice.WithTimeout(cfg.Notion.Timeout))

			if showLast {
				last, ok, err := seq.LastInvoiceNumber(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					last = "(none)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Last: %s\n", last)
			}

			next, err := seq.Next(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showLast, "last", false, "Also print the most recent invoice number")
	return cmd
}

func newCheckAccessCmd(cfg *config.Config) *cobra.Command {
	var domains, emails []string
	cmd := &cobra.Command{
		Use:   "check-access <email>",
		Short: "Report whether an email may sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("domain") {
				domains = cfg.Access.AllowedDomains
			}
			if !cmd.Flags().Changed("email") {
				emails = cfg.Access.AllowedEmails
			}
			policy := access.NewPolicy(domains, emails)
			if policy.Empty() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: access policy is empty")
			}

			if policy.Allows(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: allowed\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: denied\n", args[0])
			return fmt.Errorf("%w for %s", errDenied, args[0])
		},
	}
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "Allowed domain (overrides ALLOWED_DOMAINS)")
	cmd.Flags().StringSliceVar(&emails, "email", nil, "Allowed address (overrides ALLOWED_EMAILS)")
	return cmd
}

func newRevokeSessionsCmd(cfg *config.Config) *cobra.Command {
	var email, dbPath string
	var all, expired bool
	cmd := &cobra.Command{
		Use:   "revoke-sessions",
		Short: "Sign users out by deleting their sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chosen := 0
			for _, set := range []bool{email != "", all, expired} {
				if set {
					chosen++
				}
			}
			if chosen != 1 {
				return errors.New("specify exactly one of --email, --all or --expired")
			}

			if dbPath == "" {
				dbPath = cfg.Server.DBPath
			}
			db, err := storage.NewDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			var n int64
			switch {
			case email != "":
				n, err = db.DeleteUserSessions(email)
			case all:
				n, err = db.DeleteAllSessions()
			default:
				n, err = db.CleanExpiredSessions()
			}
			if err != nil {
				return fmt.Errorf("failed to delete sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Only this user's sessions")
	cmd.Flags().BoolVar(&all, "all", false, "Every session")
	cmd.Flags().BoolVar(&expired, "expired", false, "Only expired sessions")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to database file (defaults to DB_PATH)")
	return cmd
}

func readSecret(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
