package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// NewAuditCmd creates the audit command tree
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit statistics, sweeps and rules",
	}

	cmd.AddCommand(newAuditStatsCmd())
	cmd.AddCommand(newAuditTriggerCmd())
	cmd.AddCommand(newAuditRulesCmd())

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit coverage and flagged-claim counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditStats(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runAuditStats(envAlias string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	stats, err := mgr.API().AuditStatistics(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load audit statistics: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	fmt.Printf("Audit statistics for %s:\n\n", env.Alias)
	fmt.Printf("Total claims:    %d\n", stats.TotalClaims)
	fmt.Printf("Total audited:   %d\n", stats.TotalAudited)
	fmt.Printf("Coverage:        %.1f%%\n", stats.AuditCoverage*100)
	fmt.Println()
	fmt.Printf("High risk:       %d\n", stats.FlaggedCounts.HighRisk)
	fmt.Printf("Medium risk:     %d\n", stats.FlaggedCounts.MediumRisk)
	fmt.Printf("Low risk:        %d\n", stats.FlaggedCounts.LowRisk)
	fmt.Printf("Total flagged:   %d\n", stats.FlaggedCounts.TotalFlagged)

	return nil
}

func newAuditTriggerCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger a full audit sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditTrigger(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runAuditTrigger(envAlias string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	resp, err := mgr.API().TriggerMLAudit(context.Background())
	if err != nil {
		return fmt.Errorf("failed to trigger audit sweep: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	fmt.Printf("✓ %s\n", resp.Message)
	fmt.Printf("  Task: %s\n", resp.TaskID)
	return nil
}

func newAuditRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the audit rule set",
	}

	cmd.AddCommand(newAuditRulesListCmd())
	cmd.AddCommand(newAuditRulesApplyCmd())

	return cmd
}

func newAuditRulesListCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the active audit rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditRulesList(envAlias)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runAuditRulesList(envAlias string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	rules, err := mgr.API().AuditRules(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load audit rules: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	if len(rules) == 0 {
		fmt.Println("No audit rules configured.")
		return nil
	}

	fmt.Printf("Audit rules on %s:\n\n", env.Alias)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tCPT\tMAX CHARGE\tWEIGHT\tENABLED")
	fmt.Fprintln(w, "────\t───\t──────────\t──────\t───────")

	for _, rule := range rules {
		cpt := rule.CPTCode
		if cpt == "" {
			cpt = "*"
		}
		maxCharge := "-"
		if rule.MaxCharge > 0 {
			maxCharge = fmt.Sprintf("$%.2f", rule.MaxCharge)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%t\n", rule.Code, cpt, maxCharge, rule.Weight, rule.Enabled)
	}

	w.Flush()
	return nil
}

// ruleFile is the YAML document accepted by `audit rules apply`
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Code      string  `yaml:"code"`
	CPTCode   string  `yaml:"cpt_code"`
	MaxCharge float64 `yaml:"max_charge"`
	Weight    float64 `yaml:"weight"`
	Enabled   *bool   `yaml:"enabled"`
}

func newAuditRulesApplyCmd() *cobra.Command {
	var envAlias, file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replace the audit rule set from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditRulesApply(envAlias, file)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the rule set (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runAuditRulesApply(envAlias, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(doc.Rules) == 0 {
		return fmt.Errorf("%s defines no rules", path)
	}

	rules := make([]apiclient.AuditRule, 0, len(doc.Rules))
	for i, spec := range doc.Rules {
		if spec.Code == "" {
			return fmt.Errorf("rule %d in %s has no code", i+1, path)
		}
		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}
		rules = append(rules, apiclient.AuditRule{
			Code:      spec.Code,
			CPTCode:   spec.CPTCode,
			MaxCharge: spec.MaxCharge,
			Weight:    spec.Weight,
			Enabled:   enabled,
		})
	}

	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	if err := mgr.API().ReplaceAuditRules(context.Background(), rules); err != nil {
		return fmt.Errorf("failed to apply rules: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	fmt.Printf("✓ Applied %d audit rules to %s\n", len(rules), env.Alias)
	return nil
}
