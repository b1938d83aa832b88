package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/mcplab/pkg/crypt"
)

func newEncryptTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-token",
		Short: "Encrypt an access token read from stdin with the configured secret",
		Long: `encrypt-token reads a plaintext access token from stdin and prints it in
the encrypted form stored on server records. Use it to seed tokens for
tool servers that are authorized out of band.`,
		Args: cobra.NoArgs,
		RunE: runEncryptToken,
	}
}

func runEncryptToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cipher, err := crypt.New(cfg.Crypto.Secret)
	if err != nil {
		return err
	}

	token, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	token = strings.TrimSpace(token)
	if token == "" {
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		return errors.New("no token on stdin")
	}

	encrypted, err := cipher.Encrypt(token)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), encrypted)
	return nil
}
