package provision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
)

// DefaultCharset is used for every database this tool creates.
const DefaultCharset = "utf8"

// Databases provisions relational databases of one configured kind.
type Databases struct {
	API  API
	Poll Poller
	Kind config.DatabaseKind
}

// FindID searches the database list of the configured kind for an exact
// name match. An unknown kind is an error; a malformed database choice
// invalidates the whole deployment.
func (d Databases) FindID(ctx context.Context, name string) (string, bool, error) {
	log.Info().Str("database", name).Str("kind", string(d.Kind)).Msg("retrieving database id")

	var (
		dbs []opalapi.Database
		err error
	)
	switch d.Kind {
	case config.DatabasePostgres:
		dbs, err = d.API.ListPostgresDBs(ctx)
	case config.DatabaseMariaDB:
		dbs, err = d.API.ListMariaDBs(ctx)
	default:
		return "", false, fmt.Errorf("unknown database kind: %s", d.Kind)
	}
	if err != nil {
		return "", false, err
	}

	for _, db := range dbs {
		if db.Name == name {
			return db.ID, true, nil
		}
	}
	log.Warn().Str("database", name).Msg("no database id found: database does not exist")
	return "", false, nil
}

// Create creates the database unless existingID is already known. The
// panel creates a database user of the same name alongside it; Create
// polls the database and then that user until both are ready. Returns
// the create response, which carries the generated user's name and id.
func (d Databases) Create(ctx context.Context, name, serverID, existingID string) (*opalapi.Database, error) {
	if existingID != "" {
		log.Info().Str("database", name).Msg("database exists, skipping create")
		return &opalapi.Database{ID: existingID, Name: name}, nil
	}

	log.Info().Str("database", name).Str("kind", string(d.Kind)).Msg("creating database")

	var (
		created *opalapi.Database
		err     error
	)
	switch d.Kind {
	case config.DatabasePostgres:
		created, err = d.API.CreatePostgresDB(ctx, name, serverID, DefaultCharset)
	case config.DatabaseMariaDB:
		created, err = d.API.CreateMariaDB(ctx, name, serverID, DefaultCharset)
	default:
		return nil, fmt.Errorf("unknown database kind: %s", d.Kind)
	}
	if err != nil {
		return nil, err
	}

	if _, err := WaitReady(ctx, d.Poll, fmt.Sprintf("%s database %s", d.Kind, name),
		func(ctx context.Context) (*opalapi.Database, error) {
			return d.readDB(ctx, created.ID)
		},
		func(db *opalapi.Database) bool { return db.Ready }); err != nil {
		return nil, err
	}

	if created.DBUserID != "" {
		if _, err := WaitReady(ctx, d.Poll, "database user "+created.DBUser,
			func(ctx context.Context) (*opalapi.DBUser, error) {
				return d.readUser(ctx, created.DBUserID)
			},
			func(u *opalapi.DBUser) bool { return u.Ready }); err != nil {
			return nil, err
		}
	}

	log.Info().Str("database", name).Str("dbuser", created.DBUser).Msg("database and user created")
	return created, nil
}

func (d Databases) readDB(ctx context.Context, id string) (*opalapi.Database, error) {
	if d.Kind == config.DatabaseMariaDB {
		return d.API.ReadMariaDB(ctx, id)
	}
	return d.API.ReadPostgresDB(ctx, id)
}

func (d Databases) readUser(ctx context.Context, id string) (*opalapi.DBUser, error) {
	if d.Kind == config.DatabaseMariaDB {
		return d.API.ReadMariaUser(ctx, id)
	}
	return d.API.ReadPostgresUser(ctx, id)
}
