package cli

import (
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/approval"
	"github.com/tillerhq/tiller/internal/model"
)

var (
	approveDir      string
	approveRole     string
	approveBy       string
	approveDuration string
)

func init() {
	rootCmd.AddCommand(approveCmd, denyCmd, pendingCmd)

	for _, c := range []*cobra.Command{approveCmd, denyCmd, pendingCmd} {
		c.Flags().StringVar(&approveDir, "approvals", "", "Approval store dir (default ~/.tiller/pending)")
	}
	approveCmd.Flags().StringVar(&approveRole, "role", "human", "Approver role (human|steward)")
	approveCmd.Flags().StringVar(&approveBy, "by", "", "Approver name (default current user)")
	approveCmd.Flags().StringVar(&approveDuration, "for", "", "Validity window (e.g. 5m); omit for one-time")
	denyCmd.Flags().StringVar(&approveBy, "by", "", "Approver name (default current user)")
}

func approvalStore() (*approval.Store, error) {
	dir := approveDir
	if dir == "" {
		dir = approval.DefaultDir()
	}
	return approval.NewStore(dir)
}

func approverName() string {
	if approveBy != "" {
		return approveBy
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

var approveCmd = &cobra.Command{
	Use:   "approve <key>",
	Short: "Grant a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := approvalStore()
		if err != nil {
			return err
		}

		var duration time.Duration
		if approveDuration != "" {
			duration, err = time.ParseDuration(approveDuration)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", approveDuration, err)
			}
		}

		if err := store.Approve(args[0], model.ApproverRole(approveRole), approverName(), duration); err != nil {
			return err
		}
		fmt.Printf("approved %s\n", args[0])
		return nil
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny <key>",
	Short: "Deny a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := approvalStore()
		if err != nil {
			return err
		}
		if err := store.Deny(args[0], approverName()); err != nil {
			return err
		}
		fmt.Printf("denied %s\n", args[0])
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List approval requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := approvalStore()
		if err != nil {
			return err
		}
		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no approval requests")
			return nil
		}
		for _, r := range list {
			fmt.Printf("%-10s %-30s %s %s\n", r.Status, r.Key, r.Identity, r.ActionType)
		}
		return nil
	},
}
