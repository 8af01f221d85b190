package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/gotrie/internal/core/trie"
	"github.com/LeJamon/gotrie/internal/types"
)

var proveCmd = &cobra.Command{
	Use:   "prove <key>",
	Short: "Produce an inclusion proof for a stored key",
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

		proof, err := db.Prove(cmd.Context(), key)
		if err != nil {
			return err
		}

		blob, err := proof.MarshalBinary()
		if err != nil {
			return err
		}

		printf("root: %s\nsiblings: %d\nproof: ", db.RootHash(), len(proof.Siblings))
		fmt.Println(hex.EncodeToString(blob))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <root> <value> <proof>",
	Short: "Check an inclusion proof against a root commitment",
	Long: `verify checks a hex-encoded inclusion proof, as produced by prove,
against a 32-byte root commitment and the claimed value. The value argument
honors --hex like any other.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := types.Hash256FromHex(args[0])
		if err != nil {
			return err
		}
		value, err := decodeArg(args[1])
		if err != nil {
			return err
		}
		blob, err := hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("invalid proof hex: %w", err)
		}

		var proof trie.Proof
		if err := proof.UnmarshalBinary(blob); err != nil {
			return err
		}
		if err := trie.VerifyProof(root, proof.Key, value, proof.BranchMask, proof.Siblings); err != nil {
			return err
		}

		fmt.Println("OK")
		return nil
	},
}

var proveAbsenceCmd = &cobra.Command{
	Use:   "prove-absence <key>",
	Short: "Produce a non-inclusion proof for an absent key",
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

		proof, err := db.ProveAbsence(cmd.Context(), key)
		if err != nil {
			return err
		}

		blob, err := proof.MarshalBinary()
		if err != nil {
			return err
		}

		printf("root: %s\nproof: ", db.RootHash())
		fmt.Println(hex.EncodeToString(blob))
		return nil
	},
}

var verifyAbsenceCmd = &cobra.Command{
	Use:   "verify-absence <root> <proof>",
	Short: "Check a non-inclusion proof against a root commitment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := types.Hash256FromHex(args[0])
		if err != nil {
			return err
		}
		blob, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("invalid proof hex: %w", err)
		}

		var proof trie.NonInclusionProof
		if err := proof.UnmarshalBinary(blob); err != nil {
			return err
		}
		err = trie.VerifyNonInclusionProof(root, proof.Key, proof.LeafLabel, proof.LeafNode, proof.BranchMask, proof.Siblings)
		if err != nil {
			return err
		}

		fmt.Println("OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proveCmd, verifyCmd, proveAbsenceCmd, verifyAbsenceCmd)
}
