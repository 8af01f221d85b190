package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/gotrie/internal/types"
)

var insertCmd = &cobra.Command{
	Use:   "insert <key> <value>",
	Short: "Insert or overwrite a key-value pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := decodeArg(args[0])
		if err != nil {
			return err
		}
		value, err := decodeArg(args[1])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		root, err := db.Insert(cmd.Context(), caller, key, value)
		if err != nil {
			return err
		}

		printf("new root: ")
		fmt.Println(root)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := decodeArg(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		value, err := db.SafeGet(cmd.Context(), key)
		if err != nil {
			return err
		}

		if hexKeys {
			fmt.Println(hex.EncodeToString(value))
		} else {
			fmt.Println(string(value))
		}
		return nil
	},
}

var rootHashCmd = &cobra.Command{
	Use:   "roothash",
	Short: "Print the current root commitment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println(db.RootHash())
		return nil
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node <hash>",
	Short: "Dump the trie node stored under a commitment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := types.Hash256FromHex(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		node, err := db.GetNode(cmd.Context(), hash)
		if err != nil {
			return err
		}

		for i, edge := range node.Edges {
			if edge.IsEmpty() {
				fmt.Printf("edge %d: <empty>\n", i)
				continue
			}
			fmt.Printf("edge %d: label=%s target=%s\n", i, edge.Label, edge.Target)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print node store statistics and commit history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println(db.Stats())

		history, err := db.History(cmd.Context(), 10)
		if err != nil {
			return err
		}
		if len(history) > 0 {
			fmt.Println("\nRecent commits:")
			for _, commit := range history {
				fmt.Printf("  %6d  %s  %s\n",
					commit.Seq, commit.RootHash(), commit.CreatedAt.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List committed roots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		history, err := db.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, commit := range history {
			fmt.Printf("%6d  %s  %s\n",
				commit.Seq, commit.RootHash(), commit.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var verifyStoreCmd = &cobra.Command{
	Use:   "verify-store",
	Short: "Re-derive the content address of every stored record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := db.VerifyStore(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(result)
		if !result.IsValid() {
			for _, hash := range result.CorruptHashes {
				fmt.Printf("corrupt: %s\n", hash)
			}
			return fmt.Errorf("store verification failed")
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum commits to list, 0 for all")
	rootCmd.AddCommand(insertCmd, getCmd, rootHashCmd, nodeCmd, statsCmd, historyCmd, verifyStoreCmd)
}
