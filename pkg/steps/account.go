package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// FindAccount looks up the panel account id by name.
func FindAccount() pipeline.Step {
	return pipeline.Step{
		Name: "account.find",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			id, found, err := accounts(c).FindID(ctx, c.Project.Account)
			if err != nil {
				return pipeline.Halt(err)
			}
			if found {
				c.Data.AccountID = id
				log.Info().Str("account", c.Project.Account).Str("id", id).Msg("found account id")
			}
			return pipeline.Continue()
		},
	}
}

// CreateAccount creates the panel account when the lookup found none.
// On the server this creates /home/<account>.
func CreateAccount() pipeline.Step {
	return pipeline.Step{
		Name: "account.create",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if c.Data.AccountID == "" && c.Data.ServerID == "" {
				return pipeline.Haltf("server %s not found: a server id is required to create an account", c.Project.Server)
			}

			id, password, err := accounts(c).Create(ctx, c.Project.Account, c.Project.AccountPassword, c.Data.ServerID, c.Data.AccountID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.AccountID = id
			if password != "" {
				c.Data.AccountPassword = password
			}
			return pipeline.Continue()
		},
	}
}

// FetchAccountInfo polls the account until the platform reports it
// ready.
func FetchAccountInfo() pipeline.Step {
	return pipeline.Step{
		Name: "account.info",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			info, err := accounts(c).FetchInfo(ctx, c.Data.AccountID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.AccountInfo = info
			return pipeline.Continue()
		},
	}
}

// EstablishSSH makes sure the local ssh config can reach the account,
// creating a keypair and pushing it to the server on first contact, then
// replaces the bound executor with a remote one. This is the only step
// that replaces the executor; everything after it runs on the server.
func EstablishSSH() pipeline.Step {
	return pipeline.Step{
		Name: "account.ssh",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			account := c.Project.Account

			res, err := c.Local.Run(ctx, fmt.Sprintf("grep -ic 'Host %s' ~/.ssh/config", account),
				transports.WithEnv(baseEnv), transports.Warn())
			if err != nil {
				return pipeline.Halt(err)
			}

			if res.Stdout == "0" || res.Stdout == "" {
				if r := setupSSHAccess(ctx, c, account); r.IsHalt() {
					return r
				}
			}

			log.Info().Str("account", account).Msg("connecting to account")
			remote, err := c.Local.Connect(ctx, account)
			if err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Replace(remote)
		},
	}
}

func setupSSHAccess(ctx context.Context, c *pipeline.Context, account string) pipeline.Result {
	log.Info().Str("account", account).Msg("creating ssh keys for account")

	keyCmd := fmt.Sprintf("ssh-keygen -q -t rsa -b 4096 -N '' -f ~/.ssh/%s", account)
	if _, err := c.Local.Run(ctx, keyCmd, transports.WithEnv(baseEnv)); err != nil {
		return pipeline.Halt(err)
	}

	if c.Data.AccountPassword != "" {
		log.Info().Str("password", c.Data.AccountPassword).Msg("when asked for a password, enter the shown one")
	} else {
		log.Info().Str("account", account).Msg("find the account password in the control panel notices")
	}
	copyCmd := fmt.Sprintf("ssh-copy-id -i ~/.ssh/%s %s@%s", account, account, c.Project.Server)
	if _, err := c.Local.Run(ctx, copyCmd, transports.WithEnv(baseEnv), transports.Interactive()); err != nil {
		return pipeline.Halt(err)
	}

	log.Info().Msg("updating ssh config")
	entry := fmt.Sprintf("\nHost %s\n  IdentityFile ~/.ssh/%s\n  User %s\n  Hostname %s\n",
		account, account, account, c.Project.Server)
	appendCmd := fmt.Sprintf("printf '%%s' %q >> ~/.ssh/config", entry)
	if _, err := c.Local.Run(ctx, appendCmd, transports.WithEnv(baseEnv)); err != nil {
		return pipeline.Halt(err)
	}
	return pipeline.Continue()
}
