package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/joacominatel/ciphersql/internal/config"
	"github.com/spf13/cobra"
)

func newSecretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the OS keyring",
	}
	cmd.AddCommand(newSecretSetCommand())
	return cmd
}

func newSecretSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <" + strings.Join(config.SecretNames, "|") + ">",
		Short: "Store a secret read from stdin",
		Long: `Store a secret in the OS keyring. The value is read from the first
line of stdin. Set keyring: true in the database or hint section to use it.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.SecretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Value for %s: ", name)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read value: %w", err)
			}
			value := strings.TrimRight(line, "\r\n")
			if value == "" {
				return errors.New("empty value")
			}

			if err := config.SetSecret(name, value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nStored %s in the keyring\n", name)
			return err
		},
	}
}
