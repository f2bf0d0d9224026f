package provision

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
)

// Accounts provisions panel accounts (OS users).
type Accounts struct {
	API  API
	Poll Poller
}

// FindID searches the account list for an exact display-name match.
// Absence is a valid outcome (found=false, nil error), distinct from a
// transport failure.
func (a Accounts) FindID(ctx context.Context, name string) (string, bool, error) {
	log.Info().Str("account", name).Msg("retrieving account id")
	users, err := a.API.ListOSUsers(ctx)
	if err != nil {
		return "", false, err
	}
	for _, u := range users {
		if u.Name == name {
			return u.ID, true, nil
		}
	}
	log.Warn().Str("account", name).Msg("no account id found: account does not exist")
	return "", false, nil
}

// Create creates the account unless existingID is already known, in
// which case it returns it unchanged without an API call. The second
// return value is the panel-assigned default password, empty when the
// account already existed.
func (a Accounts) Create(ctx context.Context, name, password, serverID, existingID string) (string, string, error) {
	if existingID != "" {
		log.Info().Str("account", name).Msg("account exists, skipping create")
		return existingID, "", nil
	}

	log.Info().Str("account", name).Msg("creating account")
	user, err := a.API.CreateOSUser(ctx, name, password, serverID)
	if err != nil {
		return "", "", err
	}
	log.Info().Str("account", name).Str("id", user.ID).Msg("account created")
	return user.ID, user.DefaultPassword, nil
}

// FetchInfo polls the account until the platform reports it ready.
func (a Accounts) FetchInfo(ctx context.Context, id string) (*opalapi.OSUser, error) {
	return WaitReady(ctx, a.Poll, "account "+id,
		func(ctx context.Context) (*opalapi.OSUser, error) {
			return a.API.ReadOSUser(ctx, id)
		},
		func(u *opalapi.OSUser) bool { return u.Ready })
}
