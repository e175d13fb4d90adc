package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// overlayFlags copies every flag the user set on cmd onto a fresh flag set
// bound by bind, so explicit flags win over values loaded from a file.
func overlayFlags(cmd *cobra.Command, bind func(*pflag.FlagSet)) error {
	target := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	bind(target)

	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err != nil || target.Lookup(f.Name) == nil {
			return
		}
		err = target.Set(f.Name, f.Value.String())
	})
	return err
}
