package provision

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
)

// Apps provisions panel apps. The same protocol serves the main project
// app, the redis cache app and the supervisor app slot; only the display
// name differs.
type Apps struct {
	API  API
	Poll Poller
}

// FindID searches the app list for an exact display-name match.
func (a Apps) FindID(ctx context.Context, name string) (string, bool, error) {
	log.Info().Str("app", name).Msg("retrieving app id")
	apps, err := a.API.ListApps(ctx)
	if err != nil {
		return "", false, err
	}
	for _, app := range apps {
		if app.Name == name {
			return app.ID, true, nil
		}
	}
	log.Warn().Str("app", name).Msg("no app id found: app does not exist")
	return "", false, nil
}

// Create creates a custom app owned by osUserID unless existingID is
// already known. Calling Create with a previously found id never issues
// a second create call.
func (a Apps) Create(ctx context.Context, name, osUserID, existingID string) (string, error) {
	if existingID != "" {
		log.Info().Str("app", name).Msg("app exists, skipping create")
		return existingID, nil
	}

	log.Info().Str("app", name).Msg("creating app")
	app, err := a.API.CreateApp(ctx, opalapi.AppTypeCustom, name, osUserID)
	if err != nil {
		return "", err
	}
	log.Info().Str("app", name).Str("id", app.ID).Msg("app created")
	return app.ID, nil
}

// FetchInfo polls the app until ready and validates it is a custom app.
// A wrong type is a distinct fatal failure: the name is taken by
// something this tool does not manage.
func (a Apps) FetchInfo(ctx context.Context, id string) (*opalapi.App, error) {
	app, err := WaitReady(ctx, a.Poll, "app "+id,
		func(ctx context.Context) (*opalapi.App, error) {
			return a.API.ReadApp(ctx, id)
		},
		func(app *opalapi.App) bool { return app.Ready })
	if err != nil {
		return nil, err
	}
	if app.Type != opalapi.AppTypeCustom {
		return nil, &TypeMismatchError{Resource: "app " + app.Name, Got: app.Type, Want: opalapi.AppTypeCustom}
	}
	log.Info().Str("app", app.Name).Str("account", app.OSUserName).Int("port", app.Port).Msg("found app")
	return app, nil
}
