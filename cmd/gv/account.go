package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gv-go/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts on stderr and reads without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(prompt), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(prompt), err)
	}
	return string(b), nil
}

// keyPassphrase unlocks a protected private key, from GV_PASSPHRASE or a prompt.
func keyPassphrase() (string, error) {
	if p := os.Getenv("GV_PASSPHRASE"); p != "" {
		return p, nil
	}
	return readSecret("Key passphrase")
}

// newKeyPassphrase asks for a new passphrase twice. An empty answer leaves
// the key unprotected.
func newKeyPassphrase() (string, error) {
	if p := os.Getenv("GV_PASSPHRASE"); p != "" {
		return p, nil
	}
	p, err := readSecret("New key passphrase (empty for none)")
	if err != nil || p == "" {
		return p, err
	}
	again, err := readSecret("Repeat passphrase")
	if err != nil {
		return "", err
	}
	if again != p {
		return "", fmt.Errorf("passphrases do not match")
	}
	return p, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		token, _ := cmd.Flags().GetString("token")

		return withApp("Login", func(a *app.GVApp) error {
			if token != "" {
				if err := a.Service().LoginWithToken(token); err != nil {
					return err
				}
				fmt.Println("Token saved.")
				return nil
			}

			if email == "" {
				fmt.Fprint(os.Stderr, "Email: ")
				line, err := stdin.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading email: %w", err)
				}
				email = strings.TrimSpace(line)
			}
			password, err := readSecret("Password")
			if err != nil {
				return err
			}

			creds, err := a.Service().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s <%s>\n", creds.User.Name, creds.User.Email)
			if !creds.User.Verified {
				fmt.Println("Your account is not verified yet; donations require verification.")
			}
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear cached data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Logout", func(a *app.GVApp) error {
			if err := a.Service().Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("WhoAmI", func(a *app.GVApp) error {
			if !a.Session().Authenticated() {
				fmt.Println("Not logged in.")
				return nil
			}
			u, _ := a.Session().User()
			if u.ID == 0 {
				fmt.Println("Logged in with a token.")
				return nil
			}
			status := "unverified"
			if u.Verified {
				status = "verified"
			}
			fmt.Printf("%s <%s> (#%d, %s)\n", u.Name, u.Email, u.ID, status)
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("token", "", "Use an existing API token instead of a password")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
