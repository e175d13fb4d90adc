// Command charlm trains character-level recurrent language models and
// generates text from them.
package main

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		klog.ErrorS(err, "charlm failed")
		klog.FlushAndExit(klog.ExitFlushTimeout, 1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "charlm",
		Short:        "Character-level language model trainer and generator",
		SilenceUsage: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(
		newTrainCmd(),
		newGenerateCmd(),
		newDemoCmd(),
		newRunsCmd(),
	)
	return root
}
