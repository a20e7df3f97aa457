package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/repository"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var promoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Change the role of an account",
	Long: `Change the role of an account. Editors may author posts, admins may also
run the fake data generators.

Examples:
  blogctl users promote alice
  blogctl users promote bob --role admin
  blogctl users promote bob --role customer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		return promote(cmd, args[0], models.Role(strings.ToLower(role)))
	},
}

func init() {
	usersCmd.AddCommand(promoteCmd)

	promoteCmd.Flags().String("role", string(models.RoleEditor), "Role to grant")
}

func promote(cmd *cobra.Command, username string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	users := repository.NewUserRepository(db)
	if err := users.SetRole(cmd.Context(), username, role); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}

	printSuccess("%s is now %s", username, role)
	return nil
}
