package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/wbcms/internal/server/admin"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/dmitrijs2005/wbcms/internal/server/services"
	"github.com/spf13/cobra"
)

type userCreateConfig struct {
	role               string
	email              string
	firstName          string
	lastName           string
	studentNumber      string
	registrationNumber string
}

// promptPassword is replaced in tests.
var promptPassword = admin.PromptNewPassword

// NewUserCmd creates the user subcommand group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(NewUserCreateCmd())
	return cmd
}

// NewUserCreateCmd creates the user create subcommand. It is the only way to
// provision registrar accounts, which self sign-up never produces.
func NewUserCreateCmd() *cobra.Command {
	cfg := &userCreateConfig{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long: `Create an account with an explicit role. The password is read from the
terminal without echo, or from the first line of stdin when piped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, os.Stderr, func(ctx context.Context, b backend) error {
				return runUserCreate(ctx, cmd, b, cfg)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.role, "role", string(models.RoleRegistrar), "account role: student, lecturer or registrar")
	cmd.Flags().StringVar(&cfg.email, "email", "", "login e-mail address")
	cmd.Flags().StringVar(&cfg.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&cfg.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&cfg.studentNumber, "student-number", "", "student number (students only)")
	cmd.Flags().StringVar(&cfg.registrationNumber, "registration-number", "", "registration number (students only)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(ctx context.Context, cmd *cobra.Command, b backend, cfg *userCreateConfig) error {
	role := models.Role(cfg.role)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", cfg.role)
	}

	password, err := promptPassword(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	u, err := b.CreateUser(ctx, services.NewUser{
		Email:              cfg.email,
		Password:           password,
		FirstName:          cfg.firstName,
		LastName:           cfg.lastName,
		Role:               role,
		StudentNumber:      optional(cfg.studentNumber),
		RegistrationNumber: optional(cfg.registrationNumber),
	})
	if err != nil {
		if v := services.Violations(err); len(v) > 0 {
			for _, msg := range v {
				cmd.PrintErrln(" - " + msg)
			}
		}
		return fmt.Errorf("create user: %s: %w", services.KindOf(err), err)
	}

	cmd.Printf("Created %s %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
