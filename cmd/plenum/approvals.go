package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/plenum-ai/plenum/service/approval"
)

var (
	approvalsServer  string
	approvalsSession string
	decideReject     bool
	decideReason     string
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect and decide pending tool approvals",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tool calls awaiting a decision",
	RunE:  runApprovalsList,
}

var approvalsDecideCmd = &cobra.Command{
	Use:   "decide <request-id>",
	Short: "Approve or reject a parked tool call",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsDecide,
}

func init() {
	approvalsCmd.PersistentFlags().StringVar(&approvalsServer, "server", "http://localhost:8080", "Plenum server URL")
	approvalsListCmd.Flags().StringVar(&approvalsSession, "session", "", "Only show approvals for this session")
	approvalsDecideCmd.Flags().BoolVar(&decideReject, "reject", false, "Reject instead of approve")
	approvalsDecideCmd.Flags().StringVar(&decideReason, "reason", "", "Reason recorded with the decision")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsDecideCmd)
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	endpoint := approvalsServer + "/api/approvals"
	if approvalsSession != "" {
		endpoint += "?session=" + url.QueryEscape(approvalsSession)
	}
	resp, err := http.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	var pending []*approval.Request
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}
	for _, request := range pending {
		fmt.Printf("%s  session=%s agent=%s action=%s created=%s\n",
			request.ID, request.SessionID, request.Agent, request.Action,
			request.CreatedAt.Format(time.RFC3339))
		if len(request.Args) > 0 {
			fmt.Printf("    args: %s\n", string(request.Args))
		}
	}
	return nil
}

func runApprovalsDecide(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]interface{}{
		"approved": !decideReject,
		"reason":   decideReason,
	})
	if err != nil {
		return err
	}
	endpoint := approvalsServer + "/api/approvals/" + url.PathEscape(args[0]) + "/decision"
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, string(payload))
	}
	var decision approval.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	verdict := "approved"
	if !decision.Approved {
		verdict = "rejected"
	}
	fmt.Printf("%s %s at %s\n", decision.ID, verdict, decision.DecidedAt.Format(time.RFC3339))
	return nil
}
