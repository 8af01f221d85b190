// Package cli implements the gotried command line interface.
package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeJamon/gotrie/internal/config"
	"github.com/LeJamon/gotrie/internal/triedb"
)

var (
	// Global flags
	configFile string
	quiet      bool
	hexKeys    bool
	caller     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gotried",
	Short: "gotried - authenticated key-value store on a binary Patricia trie",
	Long: `gotried stores key-value pairs in a path-compressed binary Patricia
trie whose root hash commits to the entire contents. Every stored key can be
proven present with a compact inclusion proof, and every absent key can be
proven absent, against nothing but the 32-byte root.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print primary results")
	rootCmd.PersistentFlags().BoolVar(&hexKeys, "hex", false, "treat key and value arguments as hex")
	rootCmd.PersistentFlags().StringVar(&caller, "as", "local", "caller identity presented to the write gate")
}

// loadConfig loads the configuration honoring the --conf flag.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

// openDB opens the database from the effective configuration.
func openDB() (*triedb.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return triedb.Open(cfg.TrieDB())
}

// decodeArg interprets a key or value argument per the --hex flag.
func decodeArg(arg string) ([]byte, error) {
	if !hexKeys {
		return []byte(arg), nil
	}
	b, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid hex argument %q: %w", arg, err)
	}
	return b, nil
}

// printf suppresses secondary output under --quiet.
func printf(format string, args ...any) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}
