package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pensionlab/guidancecore"
	"github.com/pensionlab/guidancecore/entity"
	"github.com/pensionlab/guidancecore/reflection"
	"github.com/pensionlab/guidancecore/retriever"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidancecore",
		Short: "Pension guidance memory and learning core",
	}

	cmd.PersistentFlags().String("advisor", "", "advisor profile YAML file")

	cmd.AddCommand(
		newIndexCmd(),
		newAskCmd(),
		newLearnCmd(),
	)

	return cmd
}

func newRuntime(cmd *cobra.Command) (*guidancecore.Runtime, error) {
	opts := []guidancecore.Option{}

	advisorFile, _ := cmd.Flags().GetString("advisor")
	if advisorFile != "" {
		advisor, err := entity.LoadAdvisorFromFile(advisorFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, guidancecore.WithAdvisor(advisor))
	}

	return guidancecore.NewRuntime(cmd.Context(), opts...)
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <pdf-file OR url OR feed-url> ...",
		Short: "Index guidance knowledge from documents, pages, or feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.Errorf("at least one source is required")
			}

			runtime, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx := cmd.Context()
			for _, source := range args {
				switch {
				case strings.HasSuffix(source, ".pdf"):
					f, err := os.Open(source)
					if err != nil {
						return errors.Wrapf(err, "failed to open %s", source)
					}
					err = runtime.IndexKnowledgeFromPDF(ctx, f, source)
					f.Close()
					if err != nil {
						return err
					}
				case strings.Contains(source, "/feed") || strings.HasSuffix(source, ".xml") || strings.HasSuffix(source, ".rss"):
					if err := runtime.IndexKnowledgeFromFeed(ctx, source); err != nil {
						return err
					}
				case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
					if err := runtime.IndexKnowledgeFromURL(ctx, source); err != nil {
						return err
					}
				default:
					return errors.Errorf("unrecognized source: %s", source)
				}
				cmd.Printf("indexed %s\n", source)
			}

			count, err := runtime.KnowledgeService().Count(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("knowledge base now holds %d items\n", count)
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Retrieve and render the context bundle for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.Errorf("query is required")
			}

			runtime, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer runtime.Close()

			phase, _ := cmd.Flags().GetString("phase")
			taskType, _ := cmd.Flags().GetString("task-type")
			domain, _ := cmd.Flags().GetString("domain")

			bundle, err := runtime.RetrieveContext(cmd.Context(), strings.Join(args, " "), retriever.Hints{
				Phase:    retriever.Phase(phase),
				TaskType: taskType,
				Domain:   domain,
			})
			if err != nil {
				return err
			}

			rendered, err := guidancecore.RenderContextPrompt(bundle)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}

	cmd.Flags().String("phase", "", "conversation phase (opening, middle, closing)")
	cmd.Flags().String("task-type", "", "task type hint for case retrieval")
	cmd.Flags().String("domain", "", "guidance domain hint for rule retrieval")
	return cmd
}

func newLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn <consultation-file> ...",
		Short: "Run the learning pipeline over finished consultation records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.Errorf("at least one consultation file is required")
			}

			runtime, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer runtime.Close()

			for _, file := range args {
				consultation, err := loadConsultation(file)
				if err != nil {
					return err
				}

				report := runtime.ProcessConsultation(cmd.Context(), consultation)
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}
}

func loadConsultation(file string) (*reflection.Consultation, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}

	var consultation reflection.Consultation
	if strings.HasSuffix(file, ".json") {
		err = json.Unmarshal(raw, &consultation)
	} else {
		err = yaml.Unmarshal(raw, &consultation)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	return &consultation, nil
}
