package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pepperpark/imapsync/internal/imaputil"
	"github.com/pepperpark/imapsync/internal/report"
	"github.com/pepperpark/imapsync/internal/syncer"
)

var (
	// Set via -ldflags at build time.
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "imapsync",
		Short: "One-way IMAP folder synchronization without duplicates",
		Long: "imapsync copies the messages of one IMAP account's folders onto a second\n" +
			"account, skipping messages already present (deduplicated by Message-ID)\n" +
			"and preserving per-message flags. Running it twice copies nothing new.",
		RunE: runSync,
	}
	rootCmd.SilenceUsage = true

	var showVersion bool
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Print version and exit")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Printf("imapsync %s", version)
			if commit != "" {
				fmt.Printf(" (%s)", commit)
			}
			if date != "" {
				fmt.Printf(" built %s", date)
			}
			fmt.Println()
			os.Exit(0)
		}
	}
	addSyncFlags(rootCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// sync options
type syncOptions struct {
	// Source IMAP
	host1     string
	port1     int
	user1     string
	password1 string
	// MBOX source alternative
	mboxPath string

	// Target IMAP
	host2     string
	port2     int
	user2     string
	password2 string

	folder     string
	folder2    string
	allFolders bool

	dryRun          bool
	debug           bool
	logFile         string
	reportFile      string
	insecure        bool
	startTLS        bool
	timeout         time.Duration
	promptPasswords bool
	noTUI           bool
}

func addSyncFlags(cmd *cobra.Command) {
	o := &syncOptions{}
	cmd.Flags().StringVar(&o.host1, "host1", "", "Source IMAP host")
	cmd.Flags().IntVar(&o.port1, "port1", 993, "Source IMAP port")
	cmd.Flags().StringVar(&o.user1, "user1", "", "Source IMAP username")
	cmd.Flags().StringVar(&o.password1, "password1", "", "Source IMAP password (or IMAPSYNC_PASSWORD1)")
	cmd.Flags().StringVar(&o.mboxPath, "mbox", "", "Read from a local MBOX file instead of a source IMAP account")

	cmd.Flags().StringVar(&o.host2, "host2", "", "Target IMAP host")
	cmd.Flags().IntVar(&o.port2, "port2", 993, "Target IMAP port")
	cmd.Flags().StringVar(&o.user2, "user2", "", "Target IMAP username")
	cmd.Flags().StringVar(&o.password2, "password2", "", "Target IMAP password (or IMAPSYNC_PASSWORD2)")

	cmd.Flags().StringVar(&o.folder, "folder", "INBOX", "Folder to synchronize")
	cmd.Flags().StringVar(&o.folder2, "folder2", "", "Target folder name (defaults to --folder)")
	cmd.Flags().BoolVar(&o.allFolders, "all-folders", false, "Synchronize every source folder, creating missing target folders")

	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Perform a trial run with no changes made")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&o.logFile, "log-file", "", "Path to log file (optional)")
	cmd.Flags().StringVar(&o.reportFile, "report-file", "", "Write the run summary as JSON to this path")
	cmd.Flags().BoolVar(&o.insecure, "insecure", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&o.startTLS, "starttls", false, "Use STARTTLS instead of implicit TLS")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Per-call network timeout")
	cmd.Flags().BoolVar(&o.promptPasswords, "prompt-passwords", false, "Prompt for missing passwords (no echo)")
	cmd.Flags().BoolVar(&o.noTUI, "no-tui", false, "Disable the progress UI, log plainly instead")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, o))
		return nil
	}
}

type ctxKey struct{}

func runSync(cmd *cobra.Command, args []string) error {
	o := cmd.Context().Value(ctxKey{}).(*syncOptions)
	ctx := cmd.Context()

	// Credentials may come from flags, the environment, or a .env file.
	_ = godotenv.Load()
	if o.password1 == "" {
		o.password1 = os.Getenv("IMAPSYNC_PASSWORD1")
	}
	if o.password2 == "" {
		o.password2 = os.Getenv("IMAPSYNC_PASSWORD2")
	}
	if o.promptPasswords {
		if err := promptMissingPasswords(o); err != nil {
			return err
		}
	}

	if o.mboxPath != "" && o.host1 != "" {
		return fmt.Errorf("--mbox and --host1 are mutually exclusive; pick one source")
	}
	if o.mboxPath == "" {
		if o.host1 == "" || o.user1 == "" || o.password1 == "" {
			return fmt.Errorf("missing required flags: --host1, --user1, --password1")
		}
	}
	if o.host2 == "" || o.user2 == "" || o.password2 == "" {
		return fmt.Errorf("missing required flags: --host2, --user2, --password2")
	}

	useTUI := o.mboxPath == "" && !o.noTUI && term.IsTerminal(int(os.Stdout.Fd()))
	logger, closeLog, err := buildLogger(o, !useTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	tlsConfig := &tls.Config{InsecureSkipVerify: o.insecure}

	if o.mboxPath != "" {
		dst, err := imaputil.Open(ctx, imaputil.Endpoint{
			Host: o.host2, Port: o.port2, User: o.user2, Password: o.password2,
			StartTLS: o.startTLS, TLS: tlsConfig, Timeout: o.timeout,
		})
		if err != nil {
			return err
		}
		defer dst.Close()
		return runMboxImport(ctx, o, logger, dst)
	}

	src, err := imaputil.Open(ctx, imaputil.Endpoint{
		Host: o.host1, Port: o.port1, User: o.user1, Password: o.password1,
		StartTLS: o.startTLS, TLS: tlsConfig, Timeout: o.timeout,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := imaputil.Open(ctx, imaputil.Endpoint{
		Host: o.host2, Port: o.port2, User: o.user2, Password: o.password2,
		StartTLS: o.startTLS, TLS: tlsConfig, Timeout: o.timeout,
	})
	if err != nil {
		return err
	}
	defer dst.Close()

	pairs, err := folderPairs(ctx, o, src, dst, logger)
	if err != nil {
		return err
	}

	worker := syncer.New(src, dst, logger, syncer.Options{DryRun: o.dryRun})

	var sums []*report.Summary
	var errs []error
	if useTUI {
		sums, errs = runTUI(ctx, worker, pairs)
	} else {
		sums, errs = worker.Run(ctx, pairs)
	}

	printSummary(os.Stdout, sums)
	if err := report.Save(o.reportFile, sums); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "fatal:", e)
		}
		return fmt.Errorf("sync aborted with %d fatal error(s)", len(errs))
	}
	return nil
}

// folderPairs resolves which folders to synchronize. Single-folder mode
// requires the target folder to already exist (selecting it later fails
// the run if not); --all-folders mirrors the source hierarchy, creating
// missing target folders unless this is a dry run.
func folderPairs(ctx context.Context, o *syncOptions, src, dst *imaputil.Session, logger *slog.Logger) ([]syncer.FolderPair, error) {
	if !o.allFolders {
		dstFolder := o.folder2
		if dstFolder == "" {
			dstFolder = o.folder
		}
		return []syncer.FolderPair{{Src: o.folder, Dst: dstFolder}}, nil
	}

	names, err := src.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source folders: %w", err)
	}
	logger.Info("source folders found", "count", len(names))
	pairs := make([]syncer.FolderPair, 0, len(names))
	for _, name := range names {
		if !o.dryRun {
			if err := dst.EnsureFolder(name); err != nil {
				return nil, fmt.Errorf("create target folder %s: %w", name, err)
			}
		}
		pairs = append(pairs, syncer.FolderPair{Src: name, Dst: name})
	}
	return pairs, nil
}

func promptMissingPasswords(o *syncOptions) error {
	if o.password1 == "" && o.mboxPath == "" {
		fmt.Fprint(os.Stderr, "Source password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read source password: %w", err)
		}
		o.password1 = string(b)
	}
	if o.password2 == "" {
		fmt.Fprint(os.Stderr, "Target password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read target password: %w", err)
		}
		o.password2 = string(b)
	}
	return nil
}

// buildLogger constructs the run's logger: console (unless the TUI owns
// the terminal) plus an optional log file.
func buildLogger(o *syncOptions, console bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	writers := []io.Writer{}
	if console {
		writers = append(writers, os.Stdout)
	}
	closeFn := func() {}
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}
	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

func printSummary(w io.Writer, sums []*report.Summary) {
	for _, s := range sums {
		examined, skipped, copied, failed := s.Counts()
		verb := "copied"
		if s.DryRun {
			verb = "would copy"
		}
		fmt.Fprintf(w, "%s: examined %d, skipped %d, %s %d, failed %d\n",
			s.Folder, examined, skipped, verb, copied, failed)
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  failed %s: %s\n", f.Message, f.Reason)
		}
	}
}
