// Command batchrun runs VIAME/kwiver detection pipelines over a batch of
// datasets: create-job materializes a job directory from a pipeline and a
// dataset manifest, and run/resume execute it task by task.
package main

import (
	"fmt"
	"os"

	"github.com/viame/batchrun/internal/cmd"
)

var version = "dev"

func main() {
	root := cmd.RootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
