package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// NewClaimsCmd creates the claims command tree
func NewClaimsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Inspect and upload claims",
	}

	cmd.AddCommand(newClaimsListCmd())
	cmd.AddCommand(newClaimsGetCmd())
	cmd.AddCommand(newClaimsFlaggedCmd())
	cmd.AddCommand(newClaimsUploadCmd())

	return cmd
}

func newClaimsListCmd() *cobra.Command {
	var envAlias, memberID, providerID string
	var page, pageSize int

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimsList(envAlias, memberID, providerID, page, pageSize)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")
	cmd.Flags().StringVar(&memberID, "member", "", "Only claims for this member")
	cmd.Flags().StringVar(&providerID, "provider", "", "Only claims for this provider")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Page size")

	return cmd
}

func runClaimsList(envAlias, memberID, providerID string, page, pageSize int) error {
	if memberID != "" && providerID != "" {
		return fmt.Errorf("--member and --provider are mutually exclusive")
	}

	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var result *apiclient.Page[apiclient.Claim]
	switch {
	case memberID != "":
		result, err = mgr.API().ClaimsByMember(ctx, memberID, page, pageSize)
	case providerID != "":
		result, err = mgr.API().ClaimsByProvider(ctx, providerID, page, pageSize)
	default:
		result, err = mgr.API().ListClaims(ctx, page, pageSize)
	}
	if err != nil {
		return fmt.Errorf("failed to list claims: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	if len(result.Items) == 0 {
		fmt.Println("No claims found.")
		return nil
	}

	fmt.Printf("Claims on %s (page %d of %d, %d total):\n\n",
		env.Alias, result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.TotalItems)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLAIM\tMEMBER\tPROVIDER\tSERVICE DATE\tCPT\tCHARGE")
	fmt.Fprintln(w, "─────\t──────\t────────\t────────────\t───\t──────")

	for _, claim := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t$%.2f\n",
			claim.ClaimID,
			claim.MemberID,
			claim.ProviderID,
			claim.DateOfService,
			claim.CPTCode,
			claim.ChargeAmount,
		)
	}

	w.Flush()
	return nil
}

func newClaimsGetCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "get <claim-id>",
		Short: "Show a claim and its audit results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimsGet(envAlias, args[0])
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runClaimsGet(envAlias, claimID string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	ctx := context.Background()
	claim, err := mgr.API().GetClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("failed to load claim: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	fmt.Printf("Claim:         %s\n", claim.ClaimID)
	fmt.Printf("Member:        %s\n", claim.MemberID)
	fmt.Printf("Provider:      %s\n", claim.ProviderID)
	fmt.Printf("Service date:  %s\n", claim.DateOfService)
	fmt.Printf("CPT code:      %s\n", claim.CPTCode)
	fmt.Printf("Charge:        $%.2f\n", claim.ChargeAmount)

	results, err := mgr.API().AuditResultsForClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("failed to load audit results: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	if len(results) == 0 {
		fmt.Println("\nNot audited yet.")
		return nil
	}

	for _, result := range results {
		fmt.Printf("\nAudited at:    %s\n", result.AuditTimestamp)
		fmt.Printf("Suspicion:     %.2f\n", result.SuspicionScore)
		fmt.Printf("Action:        %s\n", result.RecommendedAction)
		if len(result.Issues) > 0 {
			fmt.Println("Issues:")
			for _, issue := range result.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		}
	}

	return nil
}

func newClaimsFlaggedCmd() *cobra.Command {
	var envAlias string
	var minScore float64
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "List claims flagged by the audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimsFlagged(envAlias, minScore, page, pageSize)
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0.7, "Minimum suspicion score")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Page size")

	return cmd
}

func runClaimsFlagged(envAlias string, minScore float64, page, pageSize int) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	result, err := mgr.API().FlaggedClaims(context.Background(), minScore, page, pageSize)
	if err != nil {
		return fmt.Errorf("failed to list flagged claims: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	if len(result.Items) == 0 {
		fmt.Printf("No claims flagged at or above %.2f.\n", minScore)
		return nil
	}

	fmt.Printf("Flagged claims on %s (score >= %.2f, %d total):\n\n",
		env.Alias, minScore, result.Pagination.TotalItems)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLAIM\tMEMBER\tCHARGE\tSCORE\tACTION\tISSUES")
	fmt.Fprintln(w, "─────\t──────\t──────\t─────\t──────\t──────")

	for _, claim := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t$%.2f\t%.2f\t%s\t%s\n",
			claim.ClaimID,
			claim.MemberID,
			claim.ChargeAmount,
			claim.SuspicionScore,
			claim.RecommendedAction,
			strings.Join(claim.Issues, "; "),
		)
	}

	w.Flush()
	return nil
}

func newClaimsUploadCmd() *cobra.Command {
	var envAlias string

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a claims CSV for background ingest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimsUpload(envAlias, args[0])
		},
	}

	cmd.Flags().StringVar(&envAlias, "env", "", "Environment alias (uses the selected environment if not specified)")

	return cmd
}

func runClaimsUpload(envAlias, path string) error {
	env, err := selectedEnvironment(envAlias)
	if err != nil {
		return err
	}

	mgr, err := restoredSession(env)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	fmt.Printf("Uploading %s to %s...\n", path, env.Alias)

	resp, err := mgr.API().UploadCSV(context.Background(), filepath.Base(path), file)
	if err != nil {
		return fmt.Errorf("upload failed: %s", apiclient.ErrorMessage(err, "request failed"))
	}

	fmt.Printf("✓ %s\n", resp.Message)
	fmt.Printf("  Task: %s\n", resp.TaskID)
	return nil
}
