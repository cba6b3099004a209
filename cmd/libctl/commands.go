package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-api/internal/app"
	"library-api/internal/authz"
	"library-api/internal/domain"
	"library-api/internal/service"
)

type appRunner func(runFunc) func(*cobra.Command, []string) error

func newMigrateCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrate done")
			return nil
		}),
	}
}

const seedPassword = "admin123"

type seedAccount struct {
	name, email string
	role        domain.Role
}

var seedAccounts = []seedAccount{
	{"Admin User", "admin@library.com", domain.RoleAdmin},
	{"Regular User", "user@library.com", domain.RoleUser},
}

var seedBooks = []service.BookInput{
	{Title: "The Go Programming Language", Author: "Alan Donovan", ISBN: "9780134190440", Category: "Programming", Quantity: intPtr(3)},
	{Title: "Clean Code", Author: "Robert Martin", ISBN: "9780132350884", Category: "Programming", Quantity: intPtr(2)},
	{Title: "Laskar Pelangi", Author: "Andrea Hirata", ISBN: "9789793062792", Category: "Fiction", Quantity: intPtr(1)},
}

var seedMembers = []service.MemberInput{
	{Code: "M0001", Name: "Budi Santoso"},
	{Code: "M0002", Name: "Siti Aminah"},
}

func intPtr(v int) *int { return &v }

func newSeedCmd(withApp appRunner) *cobra.Command {
	var samples, reset bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin/user accounts (and optional sample data)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			var admin *domain.User
			for _, acc := range seedAccounts {
				u, err := a.Auth.CreateUser(ctx, acc.name, acc.email, seedPassword, acc.role)
				switch {
				case domain.IsKind(err, domain.KindConflict) && reset:
					u, err = a.Auth.ResetUser(ctx, acc.email, seedPassword, acc.role)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "reset   %-20s %s\n", acc.email, acc.role)
				case domain.IsKind(err, domain.KindConflict):
					if u, err = a.Store.Users().FindByEmail(ctx, acc.email); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "exists  %-20s %s\n", acc.email, acc.role)
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "created %-20s %s\n", acc.email, acc.role)
				}
				if acc.role == domain.RoleAdmin && u != nil {
					admin = u
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password for seeded accounts: %s\n", seedPassword)

			if !samples {
				return nil
			}
			if admin == nil || admin.Role != domain.RoleAdmin {
				return errors.New("seed admin account missing or not ADMIN; rerun with --reset")
			}
			return seedSamples(ctx, cmd, a, authz.Actor{UserID: admin.ID, Email: admin.Email, Role: admin.Role})
		}),
	}
	cmd.Flags().BoolVar(&samples, "samples", false, "also create sample books and members")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset password and role of existing seed accounts")
	return cmd
}

func seedSamples(ctx context.Context, cmd *cobra.Command, a *app.App, actor authz.Actor) error {
	for _, in := range seedBooks {
		b, err := a.Books.Create(ctx, actor, in)
		if domain.IsKind(err, domain.KindConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed book %s: %w", in.ISBN, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "book    #%d %s\n", b.ID, b.Title)
	}
	for _, in := range seedMembers {
		m, err := a.Members.Create(ctx, actor, in)
		if domain.IsKind(err, domain.KindConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed member %s: %w", in.Code, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "member  #%d %s\n", m.ID, m.Code)
	}
	return nil
}

func newSweepCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark past-due borrowings as OVERDUE once",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			n, err := a.Sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d borrowings\n", n)
			return nil
		}),
	}
}

func newUserCmd(withApp appRunner) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage login accounts"}

	var name, email, password, role string
	var force bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account (ADMIN accounts can only be created here)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = readPassword(cmd); err != nil {
					return err
				}
			}
			if name == "" {
				name, _, _ = strings.Cut(email, "@")
			}

			u, err := a.Auth.CreateUser(ctx, name, email, password, r)
			if domain.IsKind(err, domain.KindConflict) && force {
				u, err = a.Auth.ResetUser(ctx, email, password, r)
			}
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user #%d %s %s\n", u.ID, u.Email, u.Role)
			return nil
		}),
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&name, "name", "", "display name (default: email local part)")
	create.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	create.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "ADMIN or USER")
	create.Flags().BoolVar(&force, "force", false, "reset password and role when the email already exists")
	_ = create.MarkFlagRequired("email")

	user.AddCommand(create)
	return user
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	cmd.Print("Password: ")
	b, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// describe 带上字段级校验信息
func describe(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) || len(de.Fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(de.Fields))
	for _, f := range de.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Errorf("%s (%s)", de.Msg, strings.Join(parts, "; "))
}
