package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/promptcraft/internal/client"
)

func newWorkflowsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List and create workflows",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workflows, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			workflows, err := bridge.ListWorkflows(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tUPDATED")
			for _, wf := range workflows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wf.ID, wf.Name, wf.Type, wf.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	var workflowType string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workflow and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			wf, err := bridge.CreateWorkflow(cmd.Context(), args[0], workflowType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wf.ID)
			return nil
		},
	}
	create.Flags().StringVar(&workflowType, "type", "image", "Workflow type")

	cmd.AddCommand(list, create)
	return cmd
}

func newProvidersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Configure provider credentials and local tool URLs",
	}

	configure := &cobra.Command{
		Use:   "configure <provider> <api-key>",
		Short: "Set the API key of a cloud provider (openai, google, grok, anthropic)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, key := args[0], args[1]
			setting, ok := cloudKeySettings[provider]
			if !ok {
				return fmt.Errorf("unknown cloud provider: %s", provider)
			}
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			if err := bridge.ConfigureProvider(cmd.Context(), provider, key); err != nil {
				return err
			}
			if err := a.state.SetSetting(cmd.Context(), setting, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configured %s\n", provider)
			return nil
		},
	}

	local := &cobra.Command{
		Use:   "local <provider> <url>",
		Short: "Set the base URL of a local tool (a1111, comfyui, invokeai)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, apiURL := args[0], args[1]
			setting, ok := localURLSettings[provider]
			if !ok {
				return fmt.Errorf("unknown local provider: %s", provider)
			}
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			if err := bridge.ConfigureLocalProvider(cmd.Context(), provider, apiURL); err != nil {
				return err
			}
			if err := a.state.SetSetting(cmd.Context(), setting, apiURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configured %s at %s\n", provider, apiURL)
			return nil
		},
	}

	cmd.AddCommand(configure, local)
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write settings",
		Long: `Read and write settings. With a bridge they are stored by the server,
in web mode in the local settings file.`,
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := a.state.Setting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %s is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.state.SetSetting(cmd.Context(), args[0], args[1])
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newModeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mode [cloud <model> | local <tool>]",
		Short: "Show or change the generation mode and selected model",
		Long: `Without arguments, print the current mode, model, category and prompt slot.
"mode cloud <model>" selects a cloud model; "mode local <tool>" selects a local
tool. Switching between image and video carries the prompt into an empty slot.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := a.state
			switch {
			case len(args) == 0:
			case args[0] == string(client.ModeCloud):
				state.Mode = client.ModeCloud
				if len(args) == 2 {
					state.SelectModel(args[1])
				}
			case args[0] == string(client.ModeLocal):
				if len(args) == 2 {
					if _, ok := localURLSettings[args[1]]; !ok {
						return fmt.Errorf("unknown local tool: %s", args[1])
					}
					state.LocalModel = args[1]
				}
				state.Mode = client.ModeLocal
			default:
				return fmt.Errorf("invalid mode %q (must be %q or %q)", args[0], client.ModeCloud, client.ModeLocal)
			}

			if len(args) > 0 {
				if err := state.Save(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mode:       %s\n", state.Mode)
			fmt.Fprintf(out, "Model:      %s\n", state.Model)
			fmt.Fprintf(out, "Local tool: %s\n", state.LocalModel)
			fmt.Fprintf(out, "Category:   %s\n", state.Category)
			fmt.Fprintf(out, "Prompt:     [%s] %s\n", state.PromptKey(), state.ActivePrompt().Text())
			fmt.Fprintf(out, "Backend:    %s\n", state.Capability())
			return nil
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	var (
		appName  string
		printURL bool
	)

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a generated file with the default or a chosen application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			if printURL {
				fmt.Fprintln(cmd.OutOrStdout(), bridge.AssetURL(args[0]))
				return nil
			}
			return bridge.OpenPath(cmd.Context(), args[0], appName)
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "Application to open the file with")
	cmd.Flags().BoolVar(&printURL, "url", false, "Print the asset URL instead of opening")
	return cmd
}

func newPortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "port <host> <port>",
		Short: "Check whether a local tool is listening",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}
			bridge, err := a.bridge()
			if err != nil {
				return err
			}
			open, err := bridge.CheckPort(cmd.Context(), args[0], port)
			if err != nil {
				return err
			}
			status := "closed"
			if open {
				status = "open"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d %s\n", args[0], port, status)
			return nil
		},
	}
}
