package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/client"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List, inspect and delete generation jobs",
	}

	var (
		watch  bool
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the workflow's jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if status != "" && !domain.ValidJobStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}
			render := func(jobs []domain.Job) {
				printJobs(out, filterJobs(jobs, status))
			}

			if !watch {
				jobs, err := a.state.ReloadJobs(cmd.Context())
				if err != nil {
					return err
				}
				render(jobs)
				return nil
			}

			_, err := a.watch(cmd.Context(), func(jobs []domain.Job) bool {
				render(jobs)
				fmt.Fprintln(out)
				return false
			})
			return err
		},
	}
	list.Flags().BoolVar(&watch, "watch", false, "Refresh while jobs are pending or running")
	list.Flags().StringVar(&status, "status", "", "Only jobs with this status")

	show := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its variations, siblings and sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.state.ReloadJobs(cmd.Context())
			if err != nil {
				return err
			}
			job, ok := findJob(jobs, args[0])
			if !ok {
				return fmt.Errorf("job %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", job.ID)
			fmt.Fprintf(out, "Status:   %s\n", job.Status)
			fmt.Fprintf(out, "Provider: %s/%s (%s)\n", job.Data.Provider, job.Data.Model, client.JobCategory(job))
			fmt.Fprintf(out, "Prompt:   %s\n", job.Data.Prompt)
			if job.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", client.Classify(errors.New(job.Error), job.Data.Provider).String())
			}
			if output := job.Result.Output(); output != "" {
				fmt.Fprintf(out, "Output:   %s\n", truncate(output, 120))
			}

			printRelations(out, client.NewIndex(jobs), job, func(j domain.Job) string {
				return fmt.Sprintf("%s %s", j.ID, j.Status)
			})
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <job-id>...",
		Short: "Delete jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := bridge.DeleteJob(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}

func newScenesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Save, combine, inspect and delete scenes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the workflow's scenes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenes, err := a.state.ReloadScenes(cmd.Context())
			if err != nil {
				return err
			}
			printScenes(cmd.OutOrStdout(), scenes)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <scene-id>",
		Short: "Show a scene with its variations, siblings and sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := a.state.ReloadScenes(cmd.Context())
			if err != nil {
				return err
			}
			var scene domain.Scene
			found := false
			for _, s := range scenes {
				if s.ID == args[0] {
					scene, found = s, true
					break
				}
			}
			if !found {
				return fmt.Errorf("scene %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scene:  %s\n", scene.ID)
			fmt.Fprintf(out, "Name:   %s\n", scene.Name)
			fmt.Fprintf(out, "Model:  %s (%s)\n", scene.Data.Model, scene.Data.Category)
			fmt.Fprintf(out, "Prompt: %s\n", scene.Data.Prompt.Main)
			for i, output := range scene.Data.Outputs {
				fmt.Fprintf(out, "Output %d: job %s %s\n", i+1, output.JobID, truncate(output.URL+output.Data, 80))
			}

			printRelations(out, client.NewIndex(scenes), scene, func(s domain.Scene) string {
				return fmt.Sprintf("%s %s", s.ID, s.Name)
			})
			return nil
		},
	}

	var meta sceneMetaFlags
	save := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the selected model's prompt as a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := a.requireWorkflow()
			if err != nil {
				return err
			}
			bridge, err := a.bridge()
			if err != nil {
				return err
			}

			model := a.state.Model
			if a.state.Mode == client.ModeLocal {
				model = a.state.LocalModel
			}
			slot := a.state.ActivePrompt()
			if strings.TrimSpace(slot.Main) == "" {
				return client.ErrEmptyPrompt
			}
			provider, _ := client.ProviderForModel(model)

			scene, err := bridge.CreateScene(cmd.Context(), dto.CreateSceneRequest{
				WorkflowID: workflowID,
				Name:       args[0],
				Data: domain.SceneData{
					Category: a.state.Category,
					Provider: provider,
					Model:    model,
					Prompt:   slot.Snapshot(),
					Metadata: meta.metadata(),
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved scene %s\n", scene.ID)
			return nil
		},
	}
	meta.register(save)

	var name string
	combine := &cobra.Command{
		Use:   "combine <job-id> <job-id>...",
		Short: "Combine completed jobs of one type into a multi-output scene",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			jobs, err := a.state.ReloadJobs(cmd.Context())
			if err != nil {
				return err
			}

			selected := make([]domain.Job, 0, len(args))
			for _, id := range args {
				job, ok := findJob(jobs, id)
				if !ok {
					return fmt.Errorf("job %s not found", id)
				}
				selected = append(selected, job)
			}

			scene, err := client.BuildMultiOutputScene(name, selected)
			if err != nil {
				return err
			}
			saved, err := bridge.CreateScene(cmd.Context(), dto.CreateSceneRequest{
				WorkflowID: scene.WorkflowID,
				Name:       scene.Name,
				Data:       scene.Data,
				Thumbnail:  scene.Thumbnail,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created scene %s with %d outputs\n", saved.ID, len(saved.Data.Outputs))
			return nil
		},
	}
	combine.Flags().StringVar(&name, "name", "", "Scene name")

	remove := &cobra.Command{
		Use:   "delete <scene-id>...",
		Short: "Delete scenes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := bridge.DeleteScene(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted scene %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, save, combine, remove)
	return cmd
}

type sceneMetaFlags struct {
	variationOf   string
	sequenceID    string
	sequenceName  string
	sequenceOrder int
	tags          []string
	notes         string
}

func (m *sceneMetaFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&m.variationOf, "variation-of", "", "Id of the scene this one is a variation of")
	flags.StringVar(&m.sequenceID, "sequence", "", "Sequence id")
	flags.StringVar(&m.sequenceName, "sequence-name", "", "Sequence name")
	flags.IntVar(&m.sequenceOrder, "order", 0, "Position within the sequence")
	flags.StringSliceVar(&m.tags, "tag", nil, "Tag, repeatable")
	flags.StringVar(&m.notes, "notes", "", "Free-form notes")
}

func (m *sceneMetaFlags) metadata() domain.RecordMetadata {
	return domain.RecordMetadata{
		Tags:          m.tags,
		Notes:         m.notes,
		VariationOf:   m.variationOf,
		SequenceID:    m.sequenceID,
		SequenceOrder: m.sequenceOrder,
		SequenceName:  m.sequenceName,
	}
}

func filterJobs(jobs []domain.Job, status string) []domain.Job {
	if status == "" {
		return jobs
	}
	var filtered []domain.Job
	for _, job := range jobs {
		if job.Status == status {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

func printJobs(out io.Writer, jobs []domain.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROVIDER\tMODEL\tCREATED\tOUTPUT")
	for _, job := range jobs {
		detail := job.Result.Output()
		if job.Status == domain.JobStatusFailed {
			detail = job.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Status, job.Data.Provider, job.Data.Model,
			job.CreatedAt.Local().Format(time.DateTime), truncate(detail, 48))
	}
	w.Flush()
}

func printScenes(out io.Writer, scenes []domain.Scene) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tMODEL\tOUTPUTS\tCREATED")
	for _, scene := range scenes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			scene.ID, scene.Name, scene.Data.Category, scene.Data.Model,
			len(scene.Data.Outputs), scene.CreatedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

func printRelations[T domain.Record](out io.Writer, ix *client.Index[T], current T, label func(T) string) {
	if parent, ok := ix.Parent(current); ok {
		fmt.Fprintf(out, "Variation of: %s\n", label(parent))
	}
	printGroup(out, "Variations", ix.Variations(current), label)
	printGroup(out, "Siblings", ix.Siblings(current), label)

	if current.Meta().SequenceID == "" {
		return
	}
	fmt.Fprintf(out, "Sequence %s:\n", current.Meta().SequenceID)
	for _, r := range ix.Timeline(current) {
		marker := " "
		if r.RecordID() == current.RecordID() {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %d. %s\n", marker, r.Meta().SequenceOrder, label(r))
	}
}

func printGroup[T domain.Record](out io.Writer, title string, records []T, label func(T) string) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, r := range records {
		fmt.Fprintf(out, "  %s\n", label(r))
	}
}
