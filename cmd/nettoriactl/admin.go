package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nettoria/backend/internal/audit"
	auditdomain "nettoria/backend/internal/audit/domain"
	auditrepo "nettoria/backend/internal/audit/repository"
	"nettoria/backend/internal/security"
	userdomain "nettoria/backend/internal/user/domain"
	userrepo "nettoria/backend/internal/user/repository"
)

// cliIP is recorded as the client address of audit events written by this tool.
const cliIP = "nettoriactl"

type adminInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

func newCreateAdminCmd() *cobra.Command {
	var in adminInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote the account with this email",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn),
				func(context.Context) string { return cliIP }, nil, nil)
			return createAdmin(cmd.Context(), cmd.OutOrStdout(), userrepo.NewPostgresRepository(conn),
				security.NewHasher(cfg.BcryptCost), auditLogger, in)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Email, "email", "", "email address (required)")
	f.StringVar(&in.Phone, "phone", "", "phone number, required for a new account")
	f.StringVar(&in.Password, "password", "", "password, required for a new account")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// createAdmin promotes an existing account or creates a verified, active admin.
func createAdmin(ctx context.Context, out io.Writer, users userrepo.Repository, hasher *security.Hasher, auditLogger audit.AuditLogger, in adminInput) error {
	email := userdomain.NormalizeEmail(in.Email)
	if !userdomain.ValidEmail(email) {
		return fmt.Errorf("email %q is invalid", in.Email)
	}
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role == userdomain.RoleAdmin {
			_, err = color.New(color.FgYellow).Fprintf(out, "%s is already an admin (%s)\n", email, existing.ID)
			return err
		}
		if err := users.UpdateRole(ctx, existing.ID, userdomain.RoleAdmin); err != nil {
			return err
		}
		auditLogger.LogEvent(ctx, existing.ID, auditdomain.ActionRoleChanged, map[string]string{
			"actor": cliIP, "from": string(existing.Role), "to": string(userdomain.RoleAdmin),
		})
		_, err = color.New(color.FgGreen).Fprintf(out, "promoted %s to admin (%s)\n", email, existing.ID)
		return err
	}

	phone := userdomain.NormalizePhone(in.Phone)
	if phone == "" {
		return fmt.Errorf("phone %q is invalid", in.Phone)
	}
	if problems := userdomain.LengthProblems(strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email, ""); len(problems) > 0 {
		return fmt.Errorf("invalid admin: %s", strings.Join(problems, ", "))
	}
	if failed := security.CheckPasswordPolicy(in.Password); len(failed) > 0 {
		return fmt.Errorf("password fails policy: %s", strings.Join(failed, ", "))
	}
	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:            uuid.New().String(),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Email:         email,
		Phone:         phone,
		PasswordHash:  hash,
		EmailVerified: true,
		PhoneVerified: true,
		Role:          userdomain.RoleAdmin,
		Status:        userdomain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	auditLogger.LogEvent(ctx, u.ID, auditdomain.ActionRegister, map[string]string{"actor": cliIP, "role": string(u.Role)})
	_, err = color.New(color.FgGreen).Fprintf(out, "created admin %s (%s)\n", email, u.ID)
	return err
}
