// Package configutil bridges cobra flags and viper keys: an explicitly set
// flag wins, otherwise the viper value (config file or env) is used.
package configutil

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flag, viperKey string) string {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetString(flag)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return ""
	}
	return viper.GetString(viperKey)
}

func FlagOrViperDuration(cmd *cobra.Command, flag, viperKey string) time.Duration {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetDuration(flag)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return 0
	}
	return viper.GetDuration(viperKey)
}
