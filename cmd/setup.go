package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/zester/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err == nil {
		r.writePlain("Config file already exists: %s\n", r.configPath)
		return nil
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Created %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'zester setup credentials' to store your OAuth token and client id\n")
	r.writePlain("2. Run 'zester fetch all' to capture your likes and playlists\n")
	return nil
}

// SetupDatabase initializes the archive index and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing archive index", "path", r.config.Database.Path)

	db, err := shared.OpenArchiveIndex(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize archive index: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Archive index ready at %s\n", r.config.Database.Path)
	return nil
}

// SetupCredentials stores the OAuth token and client id in the config file.
//
// Values come from --curl-file, then --token/--client-id, then an interactive prompt for whatever is still missing.
func (r *Runner) SetupCredentials(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")
	clientID := cmd.String("client-id")

	if curlFile := cmd.String("curl-file"); curlFile != "" {
		headers, err := shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		curlToken, curlClientID, err := headers.Credentials()
		if err != nil {
			r.logger.Warn("cURL command is incomplete, prompting for the rest", "error", err)
		}
		token = firstSet(token, curlToken)
		clientID = firstSet(clientID, curlClientID)
		r.logger.Info("parsed cURL from file", "file", curlFile)
	}

	if cmd.Bool("open") {
		r.writePlain("Sign in, open DevTools and copy any api-v2 request as cURL.\n")
		if err := shared.OpenBrowser(shared.SignInURL); err != nil {
			r.logger.Warn("could not open browser", "url", shared.SignInURL, "error", err)
		}
	}

	token, clientID, err := r.prompter.PromptCredentials(token, clientID)
	if err != nil {
		return err
	}

	r.config.Credentials.OAuthToken = token
	r.config.Credentials.ClientID = clientID
	r.soundcloud, r.transport = nil, nil

	if cmd.Bool("check") {
		sc, err := r.service()
		if err != nil {
			return err
		}
		profile, err := sc.Profile(ctx)
		if err != nil {
			return fmt.Errorf("credential check failed: %w", err)
		}
		r.writePlain("✓ Authenticated as %s (%d likes, %d playlists)\n", profile.Username, profile.LikesCount, profile.TotalPlaylistCount())
	}

	if err := r.saveConfig(); err != nil {
		return err
	}
	r.writePlain("✓ Credentials saved to %s\n", r.configPath)
	return nil
}

// saveConfig writes the current config to the config path. Environment overrides already applied are
// written as well.
func (r *Runner) saveConfig() error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: config path not set", shared.ErrMissingArgument)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}
	r.logger.Info("config saved", "path", r.configPath)
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
