package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viame/batchrun/internal/dataset"
	"github.com/viame/batchrun/internal/jobstore"
	"github.com/viame/batchrun/internal/pipeline"
)

func newCreateJobCmd() *cobra.Command {
	var jobDir, pipelineManifestPath, pipelineName, datasetManifestPath, datasetKey string
	var force bool

	cmd := &cobra.Command{
		Use:   "create-job",
		Short: "Materialize a new job directory from a pipeline manifest and a dataset manifest",
		RunE: func(c *cobra.Command, args []string) error {
			helper, err := NewHelper(c.Flags())
			if err != nil {
				return err
			}

			pipelines, err := pipeline.LoadManifest(pipelineManifestPath)
			if err != nil {
				return fail("loading pipeline manifest %q: %w", pipelineManifestPath, err)
			}
			cfg := pipelines.Get(pipelineName)
			if cfg == nil {
				return fail("pipeline %q not found in manifest %q", pipelineName, pipelineManifestPath)
			}

			datasetsManifest, err := dataset.LoadManifest(datasetManifestPath)
			if err != nil {
				return fail("loading dataset manifest %q: %w", datasetManifestPath, err)
			}
			matches, err := datasetsManifest.GetDataset(datasetKey)
			if err != nil {
				return fail("resolving dataset key %q: %w", datasetKey, err)
			}
			if len(matches) == 0 {
				return fail("dataset key %q matched nothing in %q", datasetKey, datasetManifestPath)
			}

			datasets := make([]*dataset.VIAMEDataset, 0, len(matches))
			for _, ds := range matches {
				datasets = append(datasets, ds)
			}

			root, err := jobstore.CreateJob(jobDir, cfg, datasets, force)
			if err != nil {
				return fail("creating job: %w", err)
			}

			helper.UI.Output(fmt.Sprintf("created job with %d task(s) at %s", len(datasets), root))
			return nil
		},
	}

	cmd.Flags().StringVar(&jobDir, "dir", "", "job directory to create")
	cmd.Flags().StringVar(&pipelineManifestPath, "pipeline-manifest", "pipelines.yaml", "path to the pipeline manifest YAML")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "name of the pipeline, within the manifest, to run")
	cmd.Flags().StringVar(&datasetManifestPath, "dataset-manifest", "datasets.yaml", "path to the dataset manifest YAML")
	cmd.Flags().StringVar(&datasetKey, "dataset", "", "dataset key (may be a regex wildcard) to select one or more datasets")
	cmd.Flags().BoolVar(&force, "force", false, "remove an existing job directory at --dir before creating")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("pipeline")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
