package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/zester/internal/services"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/urfave/cli/v3"
)

const apiDumpFile = "api_dump.json"

func (r *Runner) api() (*services.APIService, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	sc, err := r.service()
	if err != nil {
		return nil, err
	}
	return services.NewAPIService(sc), nil
}

// APIGet makes a direct authenticated GET request and prints the response
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}

	api, err := r.api()
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, !cmd.Bool("json"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// apiDump is the raw state of the account as the API reports it.
type apiDump struct {
	Profile   any              `json:"profile"`
	Likes     any              `json:"likes,omitempty"`
	Playlists any              `json:"playlists,omitempty"`
	Errors    []map[string]any `json:"errors,omitempty"`
}

// APIDump fetches the profile and the first page of likes and playlists.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	api, err := r.api()
	if err != nil {
		return err
	}

	r.logger.Info("dumping API state")
	r.writePlain("Fetching account state...\n\n")

	dump := apiDump{Errors: []map[string]any{}}

	r.writePlain("👤 Fetching profile...\n")
	profile, err := r.dumpEndpoint(ctx, api, "/me", &dump)
	if err != nil {
		// Nothing else is reachable without the user id.
		return err
	}
	dump.Profile = profile

	userID, ok := jsonID(profile)
	if !ok {
		return fmt.Errorf("%w: profile has no id", shared.ErrAPIRequest)
	}

	size := r.config.API.PageSize
	r.writePlain("❤️  Fetching likes...\n")
	dump.Likes, _ = r.dumpEndpoint(ctx, api, fmt.Sprintf("/users/%d/track_likes?limit=%d&linked_partitioning=1", userID, size), &dump)

	r.writePlain("📝 Fetching playlists...\n")
	dump.Playlists, _ = r.dumpEndpoint(ctx, api, fmt.Sprintf("/users/%d/playlists/liked_and_owned?limit=%d&linked_partitioning=1", userID, size), &dump)

	r.writePlain("\n✓ Dump complete\n\n")

	if cmd.Bool("save") {
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(apiDumpFile, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", apiDumpFile)
			r.writePlain("✓ Dump saved to %s\n\n", apiDumpFile)
		}
	}

	return r.writeJSON(dump, cmd.Bool("pretty"))
}

// dumpEndpoint fetches one endpoint, noting failures in dump.Errors.
func (r *Runner) dumpEndpoint(ctx context.Context, api *services.APIService, path string, dump *apiDump) (any, error) {
	resp, err := api.Get(ctx, path)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		err = fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	if err != nil {
		dump.Errors = append(dump.Errors, map[string]any{"endpoint": path, "error": err.Error()})
		r.logger.Warn("failed to fetch endpoint", "endpoint", path, "error", err)
		return nil, err
	}
	if !resp.IsJSON {
		return string(resp.Body), nil
	}
	return resp.JSONData, nil
}

func jsonID(data any) (int64, bool) {
	obj, ok := data.(map[string]any)
	if !ok {
		return 0, false
	}
	id, ok := obj["id"].(float64)
	if !ok || id <= 0 {
		return 0, false
	}
	return int64(id), true
}
