package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/display-support/internal/auth"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a staff member and print a bearer token",
		Long: `Login exchanges staff credentials for a bearer token. Export it as
SUPPORT_API_TOKEN or pass it with --token to the board and move commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := opts.client().Login(ctx, email, password)
			if err != nil {
				return err
			}
			opts.logger.Debug("staff logged in", zap.String("staff_id", resp.Staff.ID), zap.String("role", resp.Staff.Role))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s <%s> (%s)\n", resp.Staff.Name, resp.Staff.Email, resp.Staff.Role)
			fmt.Fprintf(out, "Token expires %s\n", resp.Auth.ExpiresAt.Local().Format(timeLayout))
			fmt.Fprintf(out, "export SUPPORT_API_TOKEN=%s\n", resp.Auth.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "staff email")
	cmd.Flags().StringVar(&password, "password", "", "staff password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	var password string
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for the staff directory file",
		Long: `Hash-password produces the password_hash value for an entry in the staff
YAML directory. Without --password the password is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					password = strings.TrimRight(scanner.Text(), "\r\n")
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			hashed, err := auth.HashPassword(password, cost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
