package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/promptcraft/internal/client"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

type generateFlags struct {
	provider  string
	model     string
	negative  string
	modifiers []string
	reference string
	sceneID   string
	wait      bool

	variationOf   string
	sequenceID    string
	sequenceOrder int
	tags          []string

	opts client.Options
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Submit an image or video generation",
		Long: `Submit a generation with the given prompt. Without a prompt the saved
prompt of the model's slot is used. The provider is inferred from the model
when --provider is not set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, f, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.provider, "provider", "p", "", "Provider (openai, google, grok, a1111, comfyui, invokeai)")
	flags.StringVarP(&f.model, "model", "m", "", "Model id (defaults to the selected model)")
	flags.StringVar(&f.negative, "negative", "", "Negative prompt")
	flags.StringSliceVar(&f.modifiers, "modifier", nil, "Prompt modifier, repeatable")
	flags.StringVar(&f.reference, "reference", "", "Reference image file or data URL")
	flags.StringVar(&f.sceneID, "scene", "", "Scene whose thumbnail receives the output")
	flags.BoolVar(&f.wait, "wait", false, "Wait until the job finishes")
	flags.StringVar(&f.variationOf, "variation-of", "", "Id of the job this one is a variation of")
	flags.StringVar(&f.sequenceID, "sequence", "", "Sequence id")
	flags.IntVar(&f.sequenceOrder, "order", 0, "Position within the sequence")
	flags.StringSliceVar(&f.tags, "tag", nil, "Tag, repeatable")

	flags.StringVar(&f.opts.Size, "size", "", "Image size (openai, grok)")
	flags.StringVar(&f.opts.Quality, "quality", "", "Image quality (openai)")
	flags.StringVar(&f.opts.Style, "style", "", "Image style (openai)")
	flags.IntVarP(&f.opts.N, "count", "n", 0, "Number of outputs")
	flags.StringVar(&f.opts.AspectRatio, "aspect-ratio", "", "Aspect ratio (google, video)")
	flags.StringVar(&f.opts.ImageSize, "image-size", "", "Image size (google)")
	flags.IntVar(&f.opts.Steps, "steps", 0, "Sampling steps (local tools)")
	flags.Float64Var(&f.opts.CFGScale, "cfg-scale", 0, "CFG scale (local tools)")
	flags.IntVar(&f.opts.Width, "width", 0, "Width in pixels (local tools)")
	flags.IntVar(&f.opts.Height, "height", 0, "Height in pixels (local tools)")
	flags.StringVar(&f.opts.Sampler, "sampler", "", "Sampler name (local tools)")
	flags.StringVar(&f.opts.Duration, "duration", "", "Video duration, e.g. 8s")
	flags.StringVar(&f.opts.Resolution, "resolution", "", "Video resolution, e.g. 720p")

	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f *generateFlags, prompt string) error {
	ctx := cmd.Context()

	if _, err := a.requireWorkflow(); err != nil {
		return err
	}

	provider, model, err := a.selectTarget(f.provider, f.model)
	if err != nil {
		return err
	}

	key := a.state.PromptKey()
	slot := a.state.Prompts.Get(key)
	if prompt != "" {
		slot.Main = prompt
	}
	if cmd.Flags().Changed("negative") {
		slot.Negative = f.negative
	}
	if cmd.Flags().Changed("modifier") {
		slot.Modifiers = f.modifiers
	}
	a.state.Prompts.Set(key, slot)

	if f.reference != "" {
		ref, err := readReference(f.reference)
		if err != nil {
			return err
		}
		f.opts.ReferenceImage = ref
	}

	a.restoreProviders(ctx, provider)

	job, err := client.Submit(ctx, a.state, client.Submission{
		Provider: provider,
		Model:    model,
		Slot:     slot,
		Options:  f.opts,
		SceneID:  f.sceneID,
		Metadata: domain.RecordMetadata{
			Tags:          f.tags,
			VariationOf:   f.variationOf,
			SequenceID:    f.sequenceID,
			SequenceOrder: f.sequenceOrder,
		},
	})
	if saveErr := a.state.Save(); saveErr != nil {
		a.logger.Warn("Failed to save settings",
			slog.Any("error", saveErr),
		)
	}
	if err != nil {
		return a.fail(cmd, err, provider)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s/%s)\n", job.ID, provider, model)
	if !f.wait {
		return nil
	}
	return a.waitForJob(cmd, job.ID)
}

// selectTarget resolves provider and model and makes them the current selection
func (a *app) selectTarget(provider, model string) (string, string, error) {
	if model == "" {
		if a.state.Mode == client.ModeLocal && provider == "" {
			model = a.state.LocalModel
		} else {
			model = a.state.Model
		}
	}
	if model == "" && provider != "" {
		if _, local := localURLSettings[provider]; local {
			model = provider
		}
	}
	if model == "" {
		return "", "", errors.New("no model selected: pass --model")
	}

	if provider == "" {
		guessed, ok := client.ProviderForModel(model)
		if !ok {
			return "", "", fmt.Errorf("cannot infer the provider of model %q: pass --provider", model)
		}
		provider = guessed
	}

	if _, local := localURLSettings[provider]; local {
		a.state.Mode = client.ModeLocal
		a.state.LocalModel = provider
		a.state.Category = client.CategoryForModel(provider)
	} else {
		a.state.Mode = client.ModeCloud
		a.state.SelectModel(model)
	}
	return provider, model, nil
}

// readReference turns an image file into a data URL. Data URLs pass through.
func readReference(ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("failed to read reference image: %w", err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("reference %s is not an image (%s)", ref, mt)
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// fail prints remediation links for provider errors and returns the
// classified message
func (a *app) fail(cmd *cobra.Command, err error, provider string) error {
	if errors.Is(err, client.ErrEmptyPrompt) || errors.Is(err, client.ErrBridgeUnavailable) {
		return err
	}
	classified := client.Classify(err, provider)
	for _, link := range classified.Links {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", link.Label, link.URL)
	}
	return errors.New(classified.String())
}

func (a *app) waitForJob(cmd *cobra.Command, jobID string) error {
	jobs, err := a.watch(cmd.Context(), func(jobs []domain.Job) bool {
		job, ok := findJob(jobs, jobID)
		return !ok || !job.IsActive()
	})
	if err != nil {
		return err
	}

	job, ok := findJob(jobs, jobID)
	if !ok {
		return fmt.Errorf("job %s disappeared", jobID)
	}
	if job.Status == domain.JobStatusFailed {
		return a.fail(cmd, errors.New(job.Error), job.Data.Provider)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s: %s\n", job.ID, job.Status, truncate(job.Result.Output(), 120))
	return nil
}

// watch reloads the workflow's jobs through a Poller until done reports true
// or no job is active anymore.
func (a *app) watch(ctx context.Context, done func([]domain.Job) bool) ([]domain.Job, error) {
	jobs, err := a.state.ReloadJobs(ctx)
	if err != nil {
		return nil, err
	}
	if done(jobs) || !client.AnyActive(jobs) {
		return jobs, nil
	}

	finished := make(chan []domain.Job, 1)
	var once sync.Once
	poller := client.NewPoller(client.PollerConfig{
		Logger:   a.logger.Logger,
		Reload:   a.state.ReloadJobs,
		Interval: a.cfg.Client.PollInterval,
		OnJobs: func(jobs []domain.Job) {
			if done(jobs) || !client.AnyActive(jobs) {
				once.Do(func() { finished <- jobs })
			}
		},
	})
	defer poller.Close()
	poller.Sync(jobs)

	select {
	case jobs := <-finished:
		return jobs, nil
	case <-ctx.Done():
		return a.state.Jobs(), ctx.Err()
	}
}

func newRetryCmd(a *app) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Submit a finished job's request again as a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			jobs, err := a.state.ReloadJobs(ctx)
			if err != nil {
				return err
			}
			job, ok := findJob(jobs, args[0])
			if !ok {
				return fmt.Errorf("job %s not found", args[0])
			}
			if job.IsActive() {
				return fmt.Errorf("job %s is still %s", job.ID, job.Status)
			}

			a.restoreProviders(ctx, job.Data.Provider)

			retried, err := client.Retry(ctx, a.state, job)
			if err != nil {
				return a.fail(cmd, err, job.Data.Provider)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (retry of %s)\n", retried.ID, job.ID)

			if !wait {
				return nil
			}
			return a.waitForJob(cmd, retried.ID)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the job finishes")
	return cmd
}

func newEnhanceCmd(a *app) *cobra.Command {
	var (
		provider string
		model    string
		apply    bool
	)

	cmd := &cobra.Command{
		Use:   "enhance [prompt...]",
		Short: "Rewrite a prompt for the target model with an AI text provider",
		Long: `Rewrite a prompt with the text provider named by the ai_provider setting
(anthropic by default). Without a prompt the saved prompt of the model's slot
is used. --apply stores the result in that slot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, targetModel, err := a.selectTarget(provider, model)
			if err != nil {
				return err
			}
			key := a.state.PromptKey()

			prompt := strings.Join(args, " ")
			if prompt == "" {
				prompt = a.state.Prompts.Get(key).Main
			}

			textProvider, _, _ := a.state.Setting(ctx, client.SettingEnhanceProvider)
			if textProvider == "" {
				textProvider = "anthropic"
			}
			a.restoreProviders(ctx, textProvider)

			text, err := client.Enhance(ctx, a.state, client.EnhanceRequest{
				Prompt:         prompt,
				TargetProvider: target,
				TargetModel:    targetModel,
			})
			if err != nil {
				return a.fail(cmd, err, textProvider)
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			if apply {
				a.state.Prompts.Update(key, func(s *client.Slot) { s.Main = text })
			}
			return a.state.Save()
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Target provider")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Target model")
	cmd.Flags().BoolVar(&apply, "apply", false, "Store the enhanced prompt in the model's slot")
	return cmd
}

func findJob(jobs []domain.Job, id string) (domain.Job, bool) {
	for _, job := range jobs {
		if job.ID == id {
			return job, true
		}
	}
	return domain.Job{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
