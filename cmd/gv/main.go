package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"gv-go/internal/app"
	"gv-go/internal/config"
	"gv-go/internal/encryption"
	"gv-go/internal/gv"

	"github.com/spf13/cobra"
)

func main() {
	app.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// newApp reads the config and creates a GVApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "ListDonations", "Vote").
func newApp(operation string) (*app.GVApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewGVApp(cfg, operation, app.WithPassphrase(keyPassphrase))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// withApp runs fn against a fresh app and records its outcome in the log.
func withApp(operation string, fn func(a *app.GVApp) error) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(a); err != nil {
		a.Fail(err)
		return err
	}
	return nil
}

// describeError turns an error into the line shown to the user. Forbidden
// errors show the server's reason verbatim.
func describeError(err error) string {
	var e *gv.Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	switch e.Kind {
	case gv.KindForbidden:
		return e.Reason()
	case gv.KindNotFound:
		return "Not found: " + err.Error()
	case gv.KindUnauthenticated:
		if e.Status != 0 && e.Message != "" {
			return e.Message
		}
		return "Not logged in. Run 'gv login' first."
	case gv.KindValidation:
		var b strings.Builder
		b.WriteString("Invalid input: ")
		b.WriteString(e.Reason())
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", k, strings.Join(e.Fields[k], "; "))
		}
		return b.String()
	case gv.KindNetwork:
		return "Cannot reach the server: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func notFound(resource string, id int64) error {
	return &gv.Error{Kind: gv.KindNotFound, Message: fmt.Sprintf("%s %d", resource, id)}
}

var rootCmd = &cobra.Command{
	Use:           "gv",
	Short:         "Community giving platform client",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["api_url"], defaults["base_dir"])
		cfg.Log.Dir = defaults["log_dir"]

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var opts []encryption.AgeOption
		if protect, _ := cmd.Flags().GetBool("passphrase"); protect {
			opts = append(opts, encryption.WithPassphrase(newKeyPassphrase))
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, opts...)
		if err != nil {
			return err
		}
		if !enc.IsConfigured() {
			if err := enc.Setup(); err != nil {
				return fmt.Errorf("generating keys: %w", err)
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("API:      %s\n", cfg.API.BaseURL)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Keys:     %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("API:         %s (timeout %ds)\n", cfg.API.BaseURL, cfg.API.TimeoutSeconds)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Session:     %s %s\n", cfg.Session.Type, cfg.Session.Path)
		fmt.Printf("Cache:       %s %s\n", cfg.Cache.Type, cfg.Cache.DataDir)
		fmt.Printf("Attachments: %s\n", strings.Join(cfg.Attachments.Allow, " "))
		fmt.Printf("Log:         %s (%s, %s)\n", cfg.Log.Dir, cfg.Log.Format, cfg.Log.Level)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("passphrase", false, "Protect the private key with a passphrase")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
