package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/apikey"
)

var keyName string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <user-id>",
	Short: "Issue a new API key for a user",
	Long: `Issue a new API key.

The raw secret is printed exactly once; only its hash is stored. Copy it
now, there is no way to recover it later.

Examples:
  continuity keys create alice --name "work laptop"`,
	Args: cobra.ExactArgs(1),
	RunE: runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's API keys",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <key-id>",
	Short: "Revoke an API key",
	Long: `Revoke an API key. Revocation is permanent; revoking an already
revoked key succeeds without effect.`,
	Args: cobra.ExactArgs(2),
	RunE: runKeysRevoke,
}

func init() {
	keysCreateCmd.Flags().StringVar(&keyName, "name", "default", "human-readable key name")
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)
}

func openKeyService() (apikey.Service, func(), error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	svc, err := apikey.NewService(st, zap.NewNop())
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, func() { st.Close() }, nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	svc, done, err := openKeyService()
	if err != nil {
		return err
	}
	defer done()

	raw, rec, err := svc.Generate(cmd.Context(), args[0], keyName)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	fmt.Printf("Created key %s (%s) for %s\n\n", rec.ID, rec.Name, rec.OwnerID)
	fmt.Printf("  %s\n\n", raw)
	fmt.Println("Store this secret now. It will not be shown again.")
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	svc, done, err := openKeyService()
	if err != nil {
		return err
	}
	defer done()

	keys, err := svc.List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tNAME\tCREATED\tLAST USED\tSTATUS")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsed != nil {
			lastUsed = k.LastUsed.Format("2006-01-02 15:04")
		}
		status := "active"
		if k.Revoked() {
			status = "revoked"
		}
		fmt.Fprintf(w, "%s\t%s...\t%s\t%s\t%s\t%s\n",
			k.ID, k.KeyPrefix, k.Name,
			k.CreatedAt.Format("2006-01-02 15:04"), lastUsed, status)
	}
	return w.Flush()
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	svc, done, err := openKeyService()
	if err != nil {
		return err
	}
	defer done()

	if err := svc.Revoke(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	fmt.Printf("Revoked key %s\n", args[1])
	return nil
}
