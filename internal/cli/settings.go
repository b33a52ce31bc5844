// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSettingsCommand creates the settings command.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective solver settings",
		Long: `Print the solver settings after applying PROXQP_* environment
variables to the defaults. The output can be pasted into the settings block
of a problem file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(rootOpts.Environ)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read environment", err)
			}
			if err = s.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid settings", err)
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if f.Format == "json" {
				return f.JSON(s)
			}
			out, err := yaml.Marshal(s)
			if err != nil {
				return err
			}
			_, err = f.Writer.Write(out)
			return err
		},
	}
}
