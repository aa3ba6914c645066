package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var apiURL, userID, orgID, spaceID string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store the default server, user and space",
		Long:  "Checks that the server is reachable and writes the defaults to the user config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(cmd, &GlobalConfig{
				APIURL:         apiURL,
				UserID:         userID,
				OrganizationID: orgID,
				SpaceID:        spaceID,
			}, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", defaultAPIURL, "API base URL")
	cmd.Flags().StringVar(&userID, "user", "", "User ID sent with every change")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&spaceID, "space", "", "Space ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("space")

	return cmd
}

func runInit(cmd *cobra.Command, config *GlobalConfig, outputJSON bool) error {
	api := NewAPIClientWithConfig(config.UserID, config.APIURL)
	if _, err := api.Get("/health", nil); err != nil {
		return fmt.Errorf("server not reachable at %s: %w", config.APIURL, err)
	}

	if err := SaveGlobalConfig(config); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	w := cmd.OutOrStdout()
	if outputJSON {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"success": true,
			"config":  configPath,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "Saved defaults to %s\n", configPath)
	fmt.Fprintf(w, "Space: %s/%s\n", config.OrganizationID, config.SpaceID)
	return nil
}

// setup resolves the client and scope shared by the space commands.
func setup(cmd *cobra.Command) (*APIClient, Scope, error) {
	scope, err := ResolveScope(cmd)
	if err != nil {
		return nil, Scope{}, err
	}
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return nil, Scope{}, err
	}
	return api, scope, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
