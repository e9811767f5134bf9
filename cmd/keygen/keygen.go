// Package keygen provides the command that creates credential encryption keys.
package keygen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/config"
	"github.com/oar-cd/launchpad/encryption"
	"github.com/spf13/cobra"
)

func NewCmdKeygen() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key",
		Long: `Generate a key for encrypting stored deployment credentials.

With --write, the key is stored as ` + config.EncryptionKeyEnv + ` in the .env file
of the data directory, where it is picked up when no other key is configured.
Existing entries in the file are kept; an existing key is never replaced.`,
		Args: cobra.NoArgs,
		RunE: runKeygen,
	}

	cmd.Flags().BoolP("write", "w", false, "Store the key in the data directory's .env file")
	return cmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := encryption.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	write, _ := cmd.Flags().GetBool("write")
	if !write {
		return output.FprintPlain(cmd, "%s", key)
	}

	dataDir := config.GetDefaultDataDir()
	if f := cmd.Flag("data-dir"); f != nil && f.Value.String() != "" {
		dataDir = f.Value.String()
	}
	path := filepath.Join(dataDir, config.EnvFile)

	if err := writeKey(path, key); err != nil {
		return err
	}
	return output.FprintSuccess(cmd, "Encryption key written to %s", path)
}

func writeKey(path, key string) error {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = existing
	}

	if env[config.EncryptionKeyEnv] != "" {
		return fmt.Errorf("%s already set in %s", config.EncryptionKeyEnv, path)
	}
	env[config.EncryptionKeyEnv] = key

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
