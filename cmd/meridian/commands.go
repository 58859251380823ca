package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"meridian/internal/tenant/resolver"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "meridian",
		Short:         "Terminal client for a multi-tenant workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.flags.location, "location", "", "URL the client is pointed at (overrides MERIDIAN_LOCATION)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	f.BoolVar(&a.flags.trace, "trace", false, "emit OpenTelemetry spans through the global provider")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newTenantCommand(a),
		newPasswordCommand(a),
		newRegisterCommand(a),
	)
	return root
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password, googleCode string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in on the current tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if googleCode != "" {
				_, err := a.auth.GoogleLogin(ctx, googleCode)
				return err
			}
			var err error
			if email == "" {
				if email, err = a.prompt("Email", ""); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompt("Password", ""); err != nil {
					return err
				}
			}
			_, err = a.auth.Login(ctx, email, password)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&googleCode, "google-code", "", "sign in with a Google authorization code instead")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a.creds.Snapshot()
			if !snap.Authenticated() {
				fmt.Fprintln(a.out, "Not signed in.")
				return nil
			}
			user := snap.User
			if remote {
				u, err := a.auth.Me(cmd.Context())
				if err != nil {
					return err
				}
				user = u
			}
			fmt.Fprintf(a.out, "User:    %s", user.DisplayName())
			if user != nil && user.Email != "" && user.Email != user.DisplayName() {
				fmt.Fprintf(a.out, " <%s>", user.Email)
			}
			fmt.Fprintln(a.out)
			tenant := snap.TenantID
			if snap.Tenant != nil && snap.Tenant.Name != "" {
				tenant = fmt.Sprintf("%s (%s)", snap.Tenant.Name, snap.TenantID)
			}
			fmt.Fprintf(a.out, "Tenant:  %s\n", tenant)
			if !snap.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "Expires: %s\n", humanize.Time(snap.ExpiresAt))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the profile from the backend")
	return cmd
}

func newTenantCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Inspect tenant resolution and branding",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "resolve <location>",
			Short: "Resolve the tenant of a location and remember it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				slug, err := a.auth.Navigate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if slug == "" {
					fmt.Fprintln(a.out, "No tenant in this location.")
					return nil
				}
				fmt.Fprintln(a.out, slug)
				return nil
			},
		},
		&cobra.Command{
			Use:   "settings [slug]",
			Short: "Fetch the public branding of a tenant",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				slug := currentSlug(a.resolver, a.creds.TenantID())
				if len(args) == 1 {
					slug = args[0]
				}
				if slug == "" {
					return fmt.Errorf("no tenant: pass a slug or --location")
				}
				t, err := a.tenants.PublicSettings(cmd.Context(), slug)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Name:    %s\n", t.Name)
				if t.Theme != nil {
					if t.Theme.PrimaryColor != "" {
						fmt.Fprintf(a.out, "Color:   %s\n", t.Theme.PrimaryColor)
					}
					if msg := strings.TrimSpace(t.Theme.LoginMessage); msg != "" {
						fmt.Fprintf(a.out, "Message: %s\n", msg)
					}
				}
				return nil
			},
		},
	)
	return cmd
}

func currentSlug(r *resolver.Resolver, stored string) string {
	if slug, _ := r.Current(); slug != "" {
		return slug
	}
	return stored
}

func newPasswordCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset a forgotten password",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "reset <email>",
			Short: "Email a reset link",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.auth.RequestPasswordReset(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "confirm <params> [new-password]",
			Short: "Set a new password using the parameters from the reset link",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				password := ""
				if len(args) == 2 {
					password = args[1]
				} else {
					var err error
					if password, err = a.prompt("New password", ""); err != nil {
						return err
					}
				}
				return a.auth.ConfirmPasswordReset(cmd.Context(), args[0], password)
			},
		},
	)
	return cmd
}
