package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templui/reelstore/internal/repository"
	"github.com/templui/reelstore/internal/service"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email, name, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can log in with a password",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			users := service.NewUserService(repository.NewUserRepository(database))
			user, err := users.Create(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}

			fmt.Printf("==> Created user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&password, "password", "", "password (at least 12 characters)")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
