package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ifc-viewer/backend/internal/classify"
	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
	"github.com/spf13/cobra"
)

var (
	classifyRequirements  string
	classifyUnconstrained bool
	classifyJSON          bool
	classifyList          bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [model]",
	Short: "Classify a model file against a requirement set",
	Long: `Loads a record file, derives links, selectability and always-visible
flags from the requirement file and prints a summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyRequirements, "requirements", "r", "", "requirement file (.yaml, .toml or .json)")
	classifyCmd.Flags().BoolVar(&classifyUnconstrained, "always-visible-when-unconstrained", false, "treat every item as always visible when no always-visible rule exists")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")
	classifyCmd.Flags().BoolVarP(&classifyList, "list", "l", false, "list selectable items")
	rootCmd.AddCommand(classifyCmd)
}

type classifyReport struct {
	File       string         `json:"file"`
	Schema     string         `json:"schema"`
	Primitives int            `json:"primitives"`
	Stats      classify.Stats `json:"stats"`
	Selectable []itemLine     `json:"selectable,omitempty"`
}

type itemLine struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	var rs models.RequirementSet
	if classifyRequirements != "" {
		parsed, err := parser.ParseRequirements(classifyRequirements)
		if err != nil {
			return fmt.Errorf("failed to read requirements: %w", err)
		}
		rs = *parsed
	}

	ld := loader.New(loader.NewMux(), loader.Options{})
	model, res, err := ld.Load(context.Background(), loader.Request{
		Location:       args[0],
		LoadProperties: true,
		Tag:            "cli",
	}, loader.Callbacks{})
	defer model.Dispose()
	if err != nil {
		return err
	}

	report := classifyReport{
		File:       args[0],
		Schema:     res.Schema,
		Primitives: model.PrimitiveCount(),
		Stats:      classify.Classify(model, rs, classify.Options{AlwaysVisibleWhenUnconstrained: classifyUnconstrained}),
	}
	if classifyList {
		for _, it := range model.Items() {
			if it.Selectable {
				report.Selectable = append(report.Selectable, itemLine{ID: it.ID, Kind: it.Kind, Name: it.Name})
			}
		}
	}

	if classifyJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("File:           %s\n", report.File)
	cmd.Printf("Schema:         %s\n", report.Schema)
	cmd.Printf("Items:          %d\n", report.Stats.Items)
	cmd.Printf("Primitives:     %d\n", report.Primitives)
	cmd.Printf("Linked:         %d\n", report.Stats.Linked)
	cmd.Printf("Selectable:     %d\n", report.Stats.Selectable)
	cmd.Printf("Always visible: %d\n", report.Stats.AlwaysVisible)
	for _, it := range report.Selectable {
		cmd.Printf("  #%d %s %s\n", it.ID, it.Kind, it.Name)
	}
	return nil
}
