package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

var userTier string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage continuityd users",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <user-id>",
	Short: "Create a user",
	Long: `Create a user record.

Examples:
  # Create a base-tier user
  continuity users create alice

  # Create a pro-tier user
  continuity users create bob --tier pro`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersCreate,
}

var usersSetTierCmd = &cobra.Command{
	Use:   "set-tier <user-id> <tier>",
	Short: "Change a user's tier",
	Long: `Change a user's service tier. Tier is one of base, pro, team.

Examples:
  continuity users set-tier alice pro`,
	Args: cobra.ExactArgs(2),
	RunE: runUsersSetTier,
}

func init() {
	usersCreateCmd.Flags().StringVar(&userTier, "tier", "base", "service tier (base, pro, team)")
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersSetTierCmd)
}

func parseTier(s string) (store.Tier, error) {
	switch store.Tier(s) {
	case store.TierBase, store.TierPro, store.TierTeam:
		return store.Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q (expected base, pro, or team)", s)
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	tier, err := parseTier(userTier)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	u, err := st.CreateUser(cmd.Context(), args[0], tier)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (tier: %s)\n", u.ID, u.Tier)
	return nil
}

func runUsersSetTier(cmd *cobra.Command, args []string) error {
	tier, err := parseTier(args[1])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if err := st.SetUserTier(cmd.Context(), args[0], tier); err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}

	fmt.Printf("User %s is now tier %s\n", args[0], tier)
	return nil
}
