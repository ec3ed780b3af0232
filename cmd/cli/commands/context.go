package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/internal/auth"
	"github.com/jakechorley/charity-hub/internal/config"
	"github.com/jakechorley/charity-hub/pkg/core/coordinator"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg         *config.Config
	Store       db.Store
	Coordinator *coordinator.Coordinator
	Resolver    *auth.Resolver
	Logger      *zap.Logger
	Ctx         context.Context

	// ActorID is the user given with --as
	ActorID string
	// Email signs in with CHARITY_HUB_PASSWORD instead of --as
	Email string
}

// Actor resolves the calling user from --as, or from --email and the
// configured password. Every command except register needs one.
func (a *AppContext) Actor() (model.Actor, error) {
	if strings.TrimSpace(a.ActorID) != "" {
		return a.Resolver.ResolveUser(a.Ctx, a.ActorID)
	}
	if strings.TrimSpace(a.Email) == "" {
		return model.Actor{}, fmt.Errorf("this command needs --as <user_id> or --email <email>")
	}
	if a.Cfg == nil || a.Cfg.Auth.Password == "" {
		return model.Actor{}, fmt.Errorf("--email needs the password in CHARITY_HUB_PASSWORD")
	}
	return a.Resolver.Authenticate(a.Ctx, a.Email, a.Cfg.Auth.Password)
}

// optionalActor is Actor, or nil when neither --as nor --email was given
func (a *AppContext) optionalActor() (*model.Actor, error) {
	if strings.TrimSpace(a.ActorID) == "" && strings.TrimSpace(a.Email) == "" {
		return nil, nil
	}
	actor, err := a.Actor()
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// userArg returns args[i] if present, otherwise the actor's own ID
func userArg(args []string, i int, actor model.Actor) string {
	if len(args) > i {
		return args[i]
	}
	return actor.UserID
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got: %s", value)
	}
	return date, nil
}

// optionalDate parses value, returning nil for an empty string
func optionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	date, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func parseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got: %s", name, value)
	}
	return n, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func formatOptional(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}
