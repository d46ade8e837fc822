package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/pkg/crypto"
)

var keygenDir string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new encryption key",
	Long: `Generate a new Fernet encryption key.

Without flags the key is printed to stdout. With --key-dir the key is
written as the next version file (v<N>.key) in the keyring directory;
point crypto.current_version at it to start encrypting with the new key
while older versions remain available for decryption.

Examples:
  # Print a key
  courier keygen

  # Rotate: write the next key version into the keyring
  courier keygen --key-dir /etc/courier/keys`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenDir, "key-dir", "", "write the key as the next v<N>.key in this directory")
}

var keygenFilePattern = regexp.MustCompile(`^v(\d+)\.key$`)

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	if keygenDir == "" {
		fmt.Println(key)
		return nil
	}

	if err := os.MkdirAll(keygenDir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	next, err := nextKeyVersion(keygenDir)
	if err != nil {
		return err
	}

	path := filepath.Join(keygenDir, fmt.Sprintf("v%d.key", next))
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	fmt.Printf("Wrote key version %d to %s\n", next, path)
	fmt.Printf("Set crypto.current_version: %d to encrypt with it.\n", next)
	return nil
}

// nextKeyVersion returns one more than the highest existing key version.
func nextKeyVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read key directory: %w", err)
	}

	highest := 0
	for _, entry := range entries {
		m := keygenFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > highest {
			highest = v
		}
	}
	return highest + 1, nil
}
