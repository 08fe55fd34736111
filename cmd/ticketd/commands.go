package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	flagUser        = "user"
	flagRole        = "role"
	flagStatus      = "status"
	flagTTL         = "ttl"
	defaultTokenTTL = 24 * time.Hour
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db *gorm.DB) error {
				if err := prepareSchema(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
				return nil
			})
		},
	}
}

type auditReport struct {
	UserID     string `json:"user_id"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledger_sum"`
	Consistent bool   `json:"consistent"`
}

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare a user's cached balance with the sum of their transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString(flagUser)
			userID, err := ledger.NewUserID(rawUser)
			if err != nil {
				return err
			}
			return withDatabase(cmd, func(ctx context.Context, db *gorm.DB) error {
				service, err := ledger.NewService(gormstore.New(db).Ledger(), time.Now)
				if err != nil {
					return err
				}
				audit, err := service.Audit(ctx, userID)
				if err != nil {
					return err
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(auditReport{
					UserID:     audit.UserID.String(),
					Balance:    audit.Balance.Int64(),
					LedgerSum:  audit.LedgerSum.Int64(),
					Consistent: audit.Consistent(),
				})
			})
		},
	}
	cmd.Flags().String(flagUser, "", "user id to audit")
	_ = cmd.MarkFlagRequired(flagUser)
	return cmd
}

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage driver and store profile approval",
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the approval status of a driver or store profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString(flagUser)
			rawRole, _ := cmd.Flags().GetString(flagRole)
			rawStatus, _ := cmd.Flags().GetString(flagStatus)
			userID := strings.TrimSpace(rawUser)
			if userID == "" {
				return fmt.Errorf("%w: --%s is required", config.ErrInvalidConfig, flagUser)
			}
			role, err := identity.ParseRole(rawRole)
			if err != nil {
				return err
			}
			if role != identity.RoleDriver && role != identity.RoleStore {
				return fmt.Errorf("%w: profiles exist only for DRIVER and STORE", config.ErrInvalidConfig)
			}
			status, err := parseProfileStatus(rawStatus)
			if err != nil {
				return err
			}
			return withDatabase(cmd, func(ctx context.Context, db *gorm.DB) error {
				if err := gormstore.New(db).Profiles().SetProfileStatus(ctx, userID, role, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s profile is %s\n", role, userID, status)
				return nil
			})
		},
	}
	set.Flags().String(flagUser, "", "profile owner user id")
	set.Flags().String(flagRole, "", "DRIVER or STORE")
	set.Flags().String(flagStatus, string(availability.ProfileApproved), "PENDING, APPROVED or REJECTED")
	_ = set.MarkFlagRequired(flagUser)
	_ = set.MarkFlagRequired(flagRole)
	cmd.AddCommand(set)
	return cmd
}

func parseProfileStatus(raw string) (availability.ProfileStatus, error) {
	status := availability.ProfileStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case availability.ProfilePending, availability.ProfileApproved, availability.ProfileRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown profile status %q", config.ErrInvalidConfig, raw)
	}
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			signingKey := v.GetString(flagJWTSigningKey)
			if signingKey == "" {
				return fmt.Errorf("%w: jwt signing key is required", config.ErrInvalidConfig)
			}
			issuer := strings.TrimSpace(v.GetString(flagJWTIssuer))
			if issuer == "" {
				issuer = config.DefaultSessionIssuer
			}
			role, err := identity.ParseRole(v.GetString(flagRole))
			if err != nil {
				return err
			}
			token, err := httpapi.SignSessionToken(signingKey, issuer, v.GetString(flagUser), role, v.GetDuration(flagTTL))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String(flagUser, "", "subject user id")
	cmd.Flags().String(flagRole, string(identity.RoleCustomer), "CUSTOMER, DRIVER, STORE or ADMIN")
	cmd.Flags().Duration(flagTTL, defaultTokenTTL, "token lifetime")
	cmd.Flags().String(flagJWTSigningKey, "", "session JWT signing key")
	cmd.Flags().String(flagJWTIssuer, "", "session JWT issuer")
	_ = cmd.MarkFlagRequired(flagUser)
	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *gorm.DB) error) error {
	dsn, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	db, cleanup, _, err := openDatabase(cmd.Context(), dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = cleanup() }()
	return fn(cmd.Context(), db)
}
