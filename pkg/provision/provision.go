// Package provision implements the idempotent resource-provisioning
// protocol against the control panel: look an id up by display name,
// create the resource only when absent, then poll until the platform
// reports it ready.
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
)

// API is the control-panel capability the provisioners need. It is
// satisfied by *opalapi.Client and by fakes in tests.
type API interface {
	ListOSUsers(ctx context.Context) ([]opalapi.OSUser, error)
	ReadOSUser(ctx context.Context, id string) (*opalapi.OSUser, error)
	CreateOSUser(ctx context.Context, name, password, serverID string) (*opalapi.OSUser, error)

	ListServers(ctx context.Context) ([]opalapi.Server, error)

	ListApps(ctx context.Context) ([]opalapi.App, error)
	ReadApp(ctx context.Context, id string) (*opalapi.App, error)
	CreateApp(ctx context.Context, appType, name, osUserID string) (*opalapi.App, error)

	ListPostgresDBs(ctx context.Context) ([]opalapi.Database, error)
	ReadPostgresDB(ctx context.Context, id string) (*opalapi.Database, error)
	ReadPostgresUser(ctx context.Context, id string) (*opalapi.DBUser, error)
	CreatePostgresDB(ctx context.Context, name, serverID, charset string) (*opalapi.Database, error)

	ListMariaDBs(ctx context.Context) ([]opalapi.Database, error)
	ReadMariaDB(ctx context.Context, id string) (*opalapi.Database, error)
	ReadMariaUser(ctx context.Context, id string) (*opalapi.DBUser, error)
	CreateMariaDB(ctx context.Context, name, serverID, charset string) (*opalapi.Database, error)
}

// NotReadyError reports a resource that never became ready within the
// polling budget.
type NotReadyError struct {
	Resource string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s did not become ready, check the control panel", e.Resource)
}

// TypeMismatchError reports a resource whose panel type differs from the
// expected one. Distinct from NotReadyError: the resource exists and is
// ready, but it is not ours to use.
type TypeMismatchError struct {
	Resource string
	Got      string
	Want     string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s has type %s, expected %s", e.Resource, e.Got, e.Want)
}

// Poller bounds a readiness poll. The zero value is unusable; use
// DefaultPoller.
type Poller struct {
	// Attempts is the maximum number of read calls.
	Attempts int

	// Interval is the fixed wait between non-ready responses.
	Interval time.Duration

	// Sleep waits for the interval; replaced in tests. It must honour
	// context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPoller returns the platform polling budget: 5 reads, 5 seconds
// apart.
func DefaultPoller() Poller {
	return Poller{
		Attempts: 5,
		Interval: 5 * time.Second,
		Sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitReady polls read until ready reports true, sleeping the poller's
// interval between attempts. Resource creation on the platform is
// asynchronous; the bounded wait avoids both premature failure and
// indefinite blocking. Exhausting the budget is a *NotReadyError.
func WaitReady[T any](ctx context.Context, p Poller, name string, read func(context.Context) (T, error), ready func(T) bool) (T, error) {
	var last T
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			log.Info().Str("resource", name).Msg("waiting 5 seconds for resource to be created")
			if err := p.Sleep(ctx, p.Interval); err != nil {
				return last, err
			}
		}
		v, err := read(ctx)
		if err != nil {
			return last, err
		}
		last = v
		if ready(v) {
			return v, nil
		}
	}
	return last, &NotReadyError{Resource: name}
}
