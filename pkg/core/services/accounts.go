package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// RegisterRequest creates a user and the one profile its account implies.
// CredentialHash is produced by the authentication collaborator; it is
// stored verbatim.
type RegisterRequest struct {
	Email          string        `validate:"required,email"`
	CredentialHash string        `validate:"required"`
	FullName       string        `validate:"required"`
	Account        model.Account
}

// Register creates the user row and exactly the profile its account variant
// implies. Volunteers and charities self-register; an admin account needs an
// admin actor unless no admin exists yet.
func Register(ctx context.Context, tx db.Tx, logger *zap.Logger, actor *model.Actor, req RegisterRequest) (*model.UserAccount, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Account == nil {
		return nil, apperr.WithMetadata(apperr.CodeInvalidValue, "account type is required",
			map[string]string{"field": "Account"})
	}

	user := db.User{
		ID:           newID(),
		Email:        req.Email,
		PasswordHash: req.CredentialHash,
		FullName:     req.FullName,
		Role:         req.Account.Role(),
		IsActive:     true,
		CreatedAt:    now(),
	}

	logger.Debug("Registering account",
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))

	if _, err := tx.GetUserByEmail(ctx, user.Email); err == nil {
		return nil, apperr.WithMetadata(apperr.CodeAlreadyExists, fmt.Sprintf("email %s is already registered", user.Email),
			map[string]string{"email": user.Email})
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	var account model.Account
	switch acc := req.Account.(type) {
	case model.VolunteerAccount:
		profile := db.VolunteerProfile{UserID: user.ID, Bio: strings.TrimSpace(acc.Profile.Bio)}
		if err := insertUser(ctx, tx, &user); err != nil {
			return nil, err
		}
		if err := tx.InsertVolunteerProfile(ctx, &profile); err != nil {
			return nil, fmt.Errorf("failed to insert volunteer profile: %w", err)
		}
		account = model.VolunteerAccount{Profile: profile}

	case model.CharityAccount:
		profile := db.CharityProfile{
			UserID:           user.ID,
			OrganizationName: strings.TrimSpace(acc.Profile.OrganizationName),
			LicenseNumber:    strings.TrimSpace(acc.Profile.LicenseNumber),
			Description:      acc.Profile.Description,
		}
		if profile.OrganizationName == "" || profile.LicenseNumber == "" {
			return nil, apperr.New(apperr.CodeInvalidValue, "charity needs an organization name and a license number")
		}
		if err := insertUser(ctx, tx, &user); err != nil {
			return nil, err
		}
		if err := tx.InsertCharityProfile(ctx, &profile); err != nil {
			if errors.Is(err, db.ErrAlreadyExists) {
				return nil, apperr.WithMetadata(apperr.CodeAlreadyExists,
					fmt.Sprintf("license %s is already registered", profile.LicenseNumber),
					map[string]string{"license_number": profile.LicenseNumber})
			}
			return nil, fmt.Errorf("failed to insert charity profile: %w", err)
		}
		account = model.CharityAccount{Profile: profile}

	case model.AdminAccount:
		if actor == nil || !actor.IsAdmin() {
			admins, err := tx.CountUsersByRole(ctx, db.RoleAdmin)
			if err != nil {
				return nil, fmt.Errorf("failed to count admins: %w", err)
			}
			if admins > 0 {
				return nil, unauthorized("only an admin may create admin accounts")
			}
			logger.Info("Bootstrapping first admin account", zap.String("email", user.Email))
		}
		if err := insertUser(ctx, tx, &user); err != nil {
			return nil, err
		}
		account = model.AdminAccount{}

	default:
		return nil, apperr.Newf(apperr.CodeInvalidValue, "unsupported account type %T", req.Account)
	}

	logger.Debug("Registered account", zap.String("user_id", user.ID))
	return &model.UserAccount{User: user, Account: account}, nil
}

func insertUser(ctx context.Context, tx db.Tx, user *db.User) error {
	if err := tx.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return apperr.WithMetadata(apperr.CodeAlreadyExists, fmt.Sprintf("email %s is already registered", user.Email),
				map[string]string{"email": user.Email})
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// LoadAccount rebuilds the account union from storage and reports
// INCONSISTENT_ACCOUNT when the stored profiles do not match the role
func LoadAccount(ctx context.Context, tx db.Tx, actor model.Actor, userID string) (*model.UserAccount, error) {
	if err := requireSelfOrAdmin(actor, userID); err != nil {
		return nil, err
	}
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, lookupErr("user", userID, err)
	}

	volunteer, err := tx.GetVolunteerProfile(ctx, userID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get volunteer profile: %w", err)
	}
	charity, err := tx.GetCharityProfile(ctx, userID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get charity profile: %w", err)
	}

	inconsistent := func() error {
		return apperr.WithMetadata(apperr.CodeInconsistentAccount,
			fmt.Sprintf("user %s has role %s but volunteer profile=%t charity profile=%t",
				userID, user.Role, volunteer != nil, charity != nil),
			map[string]string{"user_id": userID, "role": string(user.Role)})
	}

	var account model.Account
	switch user.Role {
	case db.RoleVolunteer:
		if volunteer == nil || charity != nil {
			return nil, inconsistent()
		}
		account = model.VolunteerAccount{Profile: *volunteer}
	case db.RoleCharity:
		if charity == nil || volunteer != nil {
			return nil, inconsistent()
		}
		account = model.CharityAccount{Profile: *charity}
	case db.RoleAdmin:
		if charity != nil || volunteer != nil {
			return nil, inconsistent()
		}
		account = model.AdminAccount{}
	default:
		return nil, inconsistent()
	}
	return &model.UserAccount{User: *user, Account: account}, nil
}

// DeactivateUser soft-deletes a user. A volunteer's active memberships are
// closed as well, clearing any team leadership they held.
// Returns the number of memberships closed.
func DeactivateUser(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, userID string) (int, error) {
	if err := requireSelfOrAdmin(actor, userID); err != nil {
		return 0, err
	}
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return 0, lookupErr("user", userID, err)
	}
	if err := tx.SetUserActive(ctx, userID, false); err != nil {
		return 0, fmt.Errorf("failed to deactivate user: %w", err)
	}
	if user.Role != db.RoleVolunteer {
		return 0, nil
	}

	memberships, err := tx.ListActiveMembershipsByVolunteer(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list memberships: %w", err)
	}
	for _, m := range memberships {
		if err := tx.DeactivateMembership(ctx, m.ID); err != nil {
			return 0, fmt.Errorf("failed to close membership %s: %w", m.ID, err)
		}
		if _, err := engine.CompensateLeave(ctx, tx, m.TeamID, userID); err != nil {
			return 0, err
		}
	}

	logger.Debug("Deactivated user",
		zap.String("user_id", userID),
		zap.Int("memberships_closed", len(memberships)))
	return len(memberships), nil
}

// PurgeUser hard-deletes a user and everything that cascades from it.
// Ratings that target the user's profile, projects or teams are removed
// first because no foreign key reaches them. A user who approved activity
// cannot be purged.
func PurgeUser(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.Is(userID) {
		return apperr.New(apperr.CodeInvalidValue, "an admin cannot purge their own account")
	}
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return lookupErr("user", userID, err)
	}

	switch user.Role {
	case db.RoleVolunteer:
		if err := purgeTargetRatings(ctx, tx, db.RatedVolunteer, userID); err != nil {
			return err
		}
	case db.RoleCharity:
		projects, err := tx.ListProjectsByCharity(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		for _, p := range projects {
			if err := purgeProjectRatings(ctx, tx, p.ID); err != nil {
				return err
			}
		}
		if err := purgeTargetRatings(ctx, tx, db.RatedCharity, userID); err != nil {
			return err
		}
	}

	if err := tx.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, db.ErrReferenced) {
			return apperr.Wrap(apperr.CodeReferenced,
				fmt.Sprintf("user %s approved activity and cannot be purged", userID), err)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Info("Purged user", zap.String("user_id", userID), zap.String("role", string(user.Role)))
	return nil
}

// VerifyCharity marks a charity profile as verified
func VerifyCharity(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, charityID string, verified bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := tx.SetCharityVerified(ctx, charityID, verified); err != nil {
		return lookupErr("charity", charityID, err)
	}
	logger.Debug("Set charity verification", zap.String("charity_id", charityID), zap.Bool("verified", verified))
	return nil
}
