package supervisor

import (
	"bytes"
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// UploadIfChanged writes content to remotePath only when forced or when
// the generated document differs byte-for-byte from what is deployed.
// A missing remote file reads as empty. Skipping identical uploads
// avoids spurious supervisor config-reload churn.
func UploadIfChanged(ctx context.Context, exec transports.Executor, content []byte, remotePath string, force bool) error {
	if !force {
		remote, _, err := exec.ReadFile(ctx, remotePath)
		if err != nil {
			return err
		}
		if bytes.Equal(content, remote) {
			log.Debug().Str("path", remotePath).Msg("config unchanged, skipping upload")
			return nil
		}
	}

	log.Info().Str("path", remotePath).Msg("updating config")
	return exec.Put(ctx, content, remotePath)
}
