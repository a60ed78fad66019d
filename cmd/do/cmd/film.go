package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/templui/reelstore/internal/repository"
	"github.com/templui/reelstore/internal/service"
)

func FilmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "film",
		Short: "Manage films and their reviewers",
	}

	cmd.AddCommand(filmCreateCmd())
	cmd.AddCommand(filmReviewCmd())
	return cmd
}

func filmService(database *sqlx.DB) *service.FilmService {
	return service.NewFilmService(
		repository.NewFilmRepository(database),
		repository.NewReviewRepository(database),
		repository.NewUserRepository(database),
	)
}

func filmCreateCmd() *cobra.Command {
	var (
		ownerID int64
		title   string
		public  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a film",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			film, err := filmService(database).Create(cmd.Context(), ownerID, title, !public)
			if err != nil {
				return err
			}

			visibility := "private"
			if !film.Private {
				visibility = "public"
			}
			fmt.Printf("==> Created %s film %d %q\n", visibility, film.ID, film.Title)
			return nil
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user ID")
	cmd.Flags().StringVar(&title, "title", "", "film title")
	cmd.Flags().BoolVar(&public, "public", false, "make the film public (its images are never served)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("title")
	return cmd
}

func filmReviewCmd() *cobra.Command {
	var filmID, reviewerID int64

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Grant a user reviewer access to a film",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			err = filmService(database).AddReviewer(cmd.Context(), filmID, reviewerID)
			if err != nil {
				return err
			}

			fmt.Printf("==> User %d can now review film %d\n", reviewerID, filmID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&filmID, "film", 0, "film ID")
	cmd.Flags().Int64Var(&reviewerID, "reviewer", 0, "reviewer user ID")
	cmd.MarkFlagRequired("film")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}
