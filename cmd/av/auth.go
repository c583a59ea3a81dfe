package main

import (
	"context"
	"fmt"

	"academic-vault/internal/app"
	"academic-vault/internal/model"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign up, sign in and manage the session",
}

var authSignupCmd = &cobra.Command{
	Use:   "signup EMAIL",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			password, err := promptNewSecret("Password")
			if err != nil {
				return err
			}
			token, err := a.SignUp(ctx, args[0], password, name)
			if err != nil {
				return err
			}
			fmt.Println("Account created. Verify your email with:")
			fmt.Printf("  av auth verify %s\n", token)
			return nil
		})
	},
}

var authVerifyCmd = &cobra.Command{
	Use:   "verify TOKEN",
	Short: "Verify an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := a.VerifyEmail(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Email verified")
			return nil
		})
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			password, err := promptSecret("Password")
			if err != nil {
				return err
			}
			id, err := a.SignIn(ctx, args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", id.Email, id.Role())
			return nil
		})
	},
}

var authGuestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Start a guest session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if _, err := a.SignInGuest(ctx); err != nil {
				return err
			}
			fmt.Println("Signed in as guest. Guests can browse shared files and use quick study.")
			return nil
		})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := a.SignOut(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		})
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			id, err := a.Identity(ctx)
			if err != nil {
				return err
			}
			if id.Role() == model.RoleGuest {
				fmt.Printf("guest (%s)\n", id.UserID)
				return nil
			}
			verified := "unverified"
			if id.EmailVerified {
				verified = "verified"
			}
			fmt.Printf("%s  %s  %s  %s\n", id.Email, id.Profile.DisplayName, id.Role(), verified)
			return nil
		})
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Change user settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		collapsed, _ := cmd.Flags().GetBool("sidebar-collapsed")
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			profile, err := a.UpdateSettings(ctx, model.UserSettings{SidebarCollapsed: collapsed})
			if err != nil {
				return err
			}
			fmt.Printf("sidebar_collapsed = %t\n", profile.Settings.SidebarCollapsed)
			return nil
		})
	},
}

func init() {
	authCmd.AddCommand(authSignupCmd)
	authSignupCmd.Flags().String("name", "", "Display name (defaults to the email address)")
	authCmd.AddCommand(authVerifyCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authGuestCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().Bool("sidebar-collapsed", false, "Collapse the sidebar")
}
