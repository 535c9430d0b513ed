package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
	"golang.org/x/text/unicode/norm"
)

var hashCost int

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Generate a bcrypt password hash for auth.password_hash",
	Long: `Reads a password (from the terminal without echo, or from stdin when
piped) and prints its bcrypt hash. Put the hash in auth.password_hash or
GATEHOUSE_PASSWORD_HASH so the plaintext never appears in configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
			return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}

		password, err := readPassword()
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(password)
		if len(password) == 0 {
			return fmt.Errorf("empty password")
		}

		// Normalize the same way the login path does, so a hash generated
		// here matches a password typed on any platform.
		normalized := []byte(norm.NFKD.String(string(password)))
		defer memguard.WipeBytes(normalized)

		hash, err := bcrypt.GenerateFromPassword(normalized, hashCost)
		if err != nil {
			return fmt.Errorf("generating hash: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	},
}

func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return password, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("reading password from stdin: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().IntVar(&hashCost, "cost", 12, "bcrypt cost factor")
}
