package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List designer profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := profile.NewRegistry(cfg.ProfilesDir, logger)
		if err := reg.Reload(); err != nil {
			return err
		}
		return listProfiles(cmd.OutOrStdout(), reg)
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List target platforms and their scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := platform.NewRegistry(cfg.PlatformsDir, logger)
		if err := reg.Reload(); err != nil {
			return err
		}
		return listPlatforms(cmd.OutOrStdout(), reg)
	},
}

func listProfiles(w io.Writer, reg *profile.Registry) error {
	if reg.Len() == 0 {
		_, err := fmt.Fprintf(w, "No profiles in %s\n", reg.Dir())
		return err
	}
	for _, key := range reg.Keys() {
		p, err := reg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%-20s %s\n", key, p.Name)
		if p.Description != "" {
			fmt.Fprintf(w, "%-20s %s\n", "", p.Description)
		}
		fmt.Fprintf(w, "%-20s %d analysis steps\n", "", len(p.AnalysisSteps))
	}
	return nil
}

func listPlatforms(w io.Writer, reg *platform.Registry) error {
	if reg.Len() == 0 {
		_, err := fmt.Fprintf(w, "No platforms in %s\n", reg.Dir())
		return err
	}
	for _, key := range reg.Keys() {
		c, err := reg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%-20s %s\n", key, c.PlatformName)
		if scenarios := c.ScenarioKeys(); len(scenarios) > 0 {
			fmt.Fprintf(w, "%-20s scenarios: %s\n", "", strings.Join(scenarios, ", "))
		}
	}
	return nil
}
