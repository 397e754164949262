package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/auth"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for catalog access",
		Long: `Store an already-obtained session token so that update runs can
authenticate against the remote catalog. The token is read from --token or,
when the flag is absent, from standard input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token (prompted when omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, token string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if token == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Session token: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("no token provided")
	}

	session := &auth.Session{Token: token, SavedAt: time.Now()}
	if err := auth.SaveSession(cfg.Settings.SessionPath, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	logger.Success("Session stored", logger.Fields{"path": cfg.Settings.SessionPath})
	return nil
}
