package provision

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Servers resolves panel web servers. Servers are never created by this
// tool, only looked up.
type Servers struct {
	API API
}

// FindID searches the web server list for an exact hostname match.
func (s Servers) FindID(ctx context.Context, hostname string) (string, bool, error) {
	log.Info().Str("server", hostname).Msg("retrieving server id")
	servers, err := s.API.ListServers(ctx)
	if err != nil {
		return "", false, err
	}
	for _, srv := range servers {
		if srv.Hostname == hostname {
			return srv.ID, true, nil
		}
	}
	log.Warn().Str("server", hostname).Msg("no server id found: server does not exist")
	return "", false, nil
}
