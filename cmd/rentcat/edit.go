package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rentcat/internal/app"
	"rentcat/internal/catalog"
)

// category commands
var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Edit categories",
}

var categoryUpsertCmd = &cobra.Command{
	Use:   "upsert NAME",
	Short: "Create a category or edit the one named by --slug",
	Args:  cobra.ExactArgs(1),
	RunE: run("UpsertCategory", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		req := catalog.CategoryRequest{Name: args[0]}
		req.OriginalSlug, _ = cmd.Flags().GetString("slug")
		req.Image, _ = cmd.Flags().GetString("image")

		res, err := a.Service().UpsertCategory(cmd.Context(), req)
		printMutation(cmd.OutOrStdout(), "Category saved", res)
		return err
	}),
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete SLUG",
	Short: "Delete a category with everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: run("DeleteCategory", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		ok, err := confirm(cmd, fmt.Sprintf("Delete category %q and all its tools?", args[0]))
		if err != nil || !ok {
			return err
		}
		res, err := a.Service().DeleteCategory(cmd.Context(), args[0])
		printMutation(cmd.OutOrStdout(), "Category deleted", res)
		return err
	}),
}

// subcategory commands
var subcategoryCmd = &cobra.Command{
	Use:   "subcategory",
	Short: "Edit subcategories",
}

var subcategoryUpsertCmd = &cobra.Command{
	Use:   "upsert CATEGORY NAME",
	Short: "Create a subcategory or edit the one named by --slug",
	Args:  cobra.ExactArgs(2),
	RunE: run("UpsertSubcategory", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		req := catalog.SubcategoryRequest{CategorySlug: args[0], Name: args[1]}
		req.OriginalSlug, _ = cmd.Flags().GetString("slug")
		req.Description = stringFlag(cmd.Flags(), "description")

		res, err := a.Service().UpsertSubcategory(cmd.Context(), req)
		printMutation(cmd.OutOrStdout(), "Subcategory saved", res)
		return err
	}),
}

var subcategoryDeleteCmd = &cobra.Command{
	Use:   "delete CATEGORY SLUG",
	Short: "Delete a subcategory with its tools",
	Args:  cobra.ExactArgs(2),
	RunE: run("DeleteSubcategory", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		ok, err := confirm(cmd, fmt.Sprintf("Delete subcategory %s/%s and all its tools?", args[0], args[1]))
		if err != nil || !ok {
			return err
		}
		res, err := a.Service().DeleteSubcategory(cmd.Context(), args[0], args[1])
		printMutation(cmd.OutOrStdout(), "Subcategory deleted", res)
		return err
	}),
}

// tool commands
var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Edit a single tool",
}

var toolUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create, edit or move a tool",
	Long: `Create, edit or move a tool.

Without --tool-id a new tool is created in --category/--subcategory.
With --tool-id the existing tool is edited; flags that are not given keep
their current value. Pricing is a JSON object of label to price, e.g.
--pricing '{"1-3 Dni": 40, "Weekend": "do uzgodnienia"}'.`,
	Args: cobra.NoArgs,
	RunE: run("UpsertTool", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		req, err := toolRequestFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		res, err := a.Service().UpsertTool(cmd.Context(), req)
		printMutation(cmd.OutOrStdout(), "Tool saved", res)
		return err
	}),
}

var toolDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete the tool at CATEGORY/SUBCATEGORY/ID",
	Args:  cobra.ExactArgs(1),
	RunE: run("DeleteTool", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		cat, sub, id, ok := catalog.ParseToolKey(args[0])
		if !ok {
			return fmt.Errorf("tool key %q must look like category/subcategory/id", args[0])
		}
		ok, err := confirm(cmd, fmt.Sprintf("Delete tool %s?", args[0]))
		if err != nil || !ok {
			return err
		}
		res, err := a.Service().DeleteTool(cmd.Context(), cat, sub, id)
		printMutation(cmd.OutOrStdout(), "Tool deleted", res)
		return err
	}),
}

// tools bulk commands
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Change many tools at once",
}

var toolsEnableCmd = &cobra.Command{
	Use:   "enable KEY...",
	Short: "Show tools on the site",
	Args:  cobra.MinimumNArgs(1),
	RunE: run("BulkToggle", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		res, err := a.Service().BulkToggle(cmd.Context(), args, true)
		printMutation(cmd.OutOrStdout(), "Tools enabled", res)
		return err
	}),
}

var toolsDisableCmd = &cobra.Command{
	Use:   "disable KEY...",
	Short: "Hide tools from the site",
	Args:  cobra.MinimumNArgs(1),
	RunE: run("BulkToggle", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		res, err := a.Service().BulkToggle(cmd.Context(), args, false)
		printMutation(cmd.OutOrStdout(), "Tools disabled", res)
		return err
	}),
}

var toolsAdjustPriceCmd = &cobra.Command{
	Use:   "adjust-price --by DELTA KEY...",
	Short: "Add DELTA to every numeric rate of the tools",
	Args:  cobra.MinimumNArgs(1),
	RunE: run("BulkAdjustPrice", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		delta, _ := cmd.Flags().GetString("by")
		res, err := a.AdjustPrice(cmd.Context(), args, delta)
		printMutation(cmd.OutOrStdout(), "Prices adjusted", res)
		return err
	}),
}

// stringFlag returns a pointer to the flag value when it was given.
func stringFlag(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetString(name)
	return &v
}

// toolRequestFromFlags builds the request of tool upsert. Only flags the
// user set end up in the payload.
func toolRequestFromFlags(fs *pflag.FlagSet) (catalog.ToolRequest, error) {
	var req catalog.ToolRequest
	req.ToolID, _ = fs.GetString("tool-id")
	req.OriginalCategorySlug, _ = fs.GetString("from-category")
	req.OriginalSubcategorySlug, _ = fs.GetString("from-subcategory")
	req.CategorySlug, _ = fs.GetString("category")
	req.SubcategorySlug, _ = fs.GetString("subcategory")

	req.ID = stringFlag(fs, "id")
	req.Name = stringFlag(fs, "name")
	req.Image = stringFlag(fs, "image")
	req.Description = stringFlag(fs, "description")

	if p := stringFlag(fs, "pricing"); p != nil {
		req.Pricing = json.RawMessage(*p)
	}
	if d := stringFlag(fs, "deposit"); d != nil {
		req.Deposit = depositRaw(*d)
	}
	if clearDeposit, _ := fs.GetBool("clear-deposit"); clearDeposit {
		req.Deposit = json.RawMessage("null")
	}

	enable, _ := fs.GetBool("enable")
	disable, _ := fs.GetBool("disable")
	switch {
	case enable && disable:
		return req, fmt.Errorf("--enable and --disable are mutually exclusive")
	case enable:
		req.Enabled = &enable
	case disable:
		f := false
		req.Enabled = &f
	}
	return req, nil
}

// depositRaw encodes a deposit flag: numbers stay numbers, anything else
// is kept as text.
func depositRaw(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		return json.RawMessage(d.String())
	}
	b, _ := json.Marshal(s)
	return b
}

func addEditCommands() {
	categoryCmd.AddCommand(categoryUpsertCmd)
	categoryUpsertCmd.Flags().String("slug", "", "Slug of the category to edit")
	categoryUpsertCmd.Flags().String("image", "", "Image path (kept when empty on edit)")
	categoryCmd.AddCommand(categoryDeleteCmd)

	subcategoryCmd.AddCommand(subcategoryUpsertCmd)
	subcategoryUpsertCmd.Flags().String("slug", "", "Slug of the subcategory to edit")
	subcategoryUpsertCmd.Flags().String("description", "", "Description (kept when not given)")
	subcategoryCmd.AddCommand(subcategoryDeleteCmd)

	toolCmd.AddCommand(toolUpsertCmd)
	f := toolUpsertCmd.Flags()
	f.String("tool-id", "", "Id of the tool to edit; empty creates a new tool")
	f.String("from-category", "", "Current category of the tool, when its id is ambiguous")
	f.String("from-subcategory", "", "Current subcategory of the tool, when its id is ambiguous")
	f.String("category", "", "Target category slug")
	f.String("subcategory", "", "Target subcategory slug")
	f.String("id", "", "New tool id")
	f.String("name", "", "Tool name")
	f.String("image", "", "Image path")
	f.String("description", "", "Description")
	f.String("pricing", "", "Pricing as a JSON object of label to price")
	f.String("deposit", "", "Deposit amount or text")
	f.Bool("clear-deposit", false, "Remove the deposit")
	f.Bool("enable", false, "Show the tool on the site")
	f.Bool("disable", false, "Hide the tool from the site")
	toolCmd.AddCommand(toolDeleteCmd)

	toolsCmd.AddCommand(toolsEnableCmd)
	toolsCmd.AddCommand(toolsDisableCmd)
	toolsCmd.AddCommand(toolsAdjustPriceCmd)
	toolsAdjustPriceCmd.Flags().String("by", "", "Price delta, e.g. 5 or -2.50")
	toolsAdjustPriceCmd.MarkFlagRequired("by")

	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(subcategoryCmd)
	rootCmd.AddCommand(toolCmd)
	rootCmd.AddCommand(toolsCmd)
}
