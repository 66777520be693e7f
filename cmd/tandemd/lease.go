package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/frumu/tandem/pkg/types"
)

func leaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Acquire, renew, or release the process-global edit lease",
	}
	cmd.AddCommand(leaseAcquireCmd())
	cmd.AddCommand(leaseRenewCmd())
	cmd.AddCommand(leaseReleaseCmd())
	return cmd
}

func leaseAcquireCmd() *cobra.Command {
	var clientID, clientType string
	var ttlMs int64
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire the global lease, or return the live one unchanged",
		RunE: func(cmd *cobra.Command, args []string) error {
			var lease types.Lease
			if err := postJSON("/global/lease/acquire", map[string]any{
				"clientId":   clientID,
				"clientType": clientType,
				"ttlMs":      ttlMs,
			}, &lease); err != nil {
				return err
			}
			fmt.Printf("leaseId=%s clientId=%s clientType=%s ttlMs=%d\n", lease.LeaseID, lease.ClientID, lease.ClientType, lease.TTLMs)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "identifies the acquiring client")
	cmd.Flags().StringVar(&clientType, "client-type", "cli", "client kind (e.g. cli, tui, ide)")
	cmd.Flags().Int64Var(&ttlMs, "ttl-ms", 0, "lease TTL in milliseconds (0 = engine default)")
	cmd.MarkFlagRequired("client-id")
	return cmd
}

func leaseRenewCmd() *cobra.Command {
	var leaseID string
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Renew a held lease",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				OK bool `json:"ok"`
			}
			if err := postJSON("/global/lease/renew", map[string]any{"leaseId": leaseID}, &resp); err != nil {
				return err
			}
			fmt.Printf("ok=%v\n", resp.OK)
			return nil
		},
	}
	cmd.Flags().StringVar(&leaseID, "lease-id", "", "the lease to renew")
	cmd.MarkFlagRequired("lease-id")
	return cmd
}

func leaseReleaseCmd() *cobra.Command {
	var leaseID string
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release a held lease",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				OK bool `json:"ok"`
			}
			if err := postJSON("/global/lease/release", map[string]any{"leaseId": leaseID}, &resp); err != nil {
				return err
			}
			fmt.Printf("ok=%v\n", resp.OK)
			return nil
		},
	}
	cmd.Flags().StringVar(&leaseID, "lease-id", "", "the lease to release")
	cmd.MarkFlagRequired("lease-id")
	return cmd
}

// postJSON is a minimal HTTP client for tandemd's own CLI subcommands; it
// carries no retry/backoff logic since lease operations are idempotent and
// user-retriable at the command line.
func postJSON(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(apiAddr+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tandemd: request to %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("tandemd: %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
