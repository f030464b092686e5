package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/evidence"
	"github.com/entrhq/packetgate/pkg/gitx"
	"github.com/entrhq/packetgate/pkg/logging"
)

var (
	collectContract string
	collectMeta     string

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Collect the evidence bundle for a packet",
		Long: `Collect snapshots repository state, diffs the packet worktree against
its base, evaluates path and budget constraints, and writes the evidence
bundle (evidence.json, evidence.md, raw captures, hash manifest) under the
contract's out_dir. Exit code 0 means the final decision is ALLOW; exit
code 2 means DENY.`,
		Run: runCollect,
	}
)

func init() {
	collectCmd.Flags().StringVar(&collectContract, "contract", "", "path to packet contract (JSON or YAML)")
	collectCmd.Flags().StringVar(&collectMeta, "meta", "", "path to runner metadata JSON")
	cobra.CheckErr(collectCmd.MarkFlagRequired("contract"))
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) {
	log, _ := logging.New("cli")
	if log != nil {
		defer log.Close()
	}

	var meta *evidence.Meta
	if collectMeta != "" {
		m, err := evidence.LoadMeta(collectMeta)
		if err != nil {
			// A bad meta document never blocks evidence collection; the
			// harness falls back to its own observations.
			fmt.Fprintf(os.Stderr, "warning: ignoring meta %s: %v\n", collectMeta, err)
			if log != nil {
				log.Warnf("ignoring meta %s: %v", collectMeta, err)
			}
		} else {
			meta = m
		}
	}

	c, loadErr := contract.Load(collectContract)
	res := evidence.New(gitx.NewExec(), log).Collect(cmd.Context(), evidence.Request{
		Contract:    c,
		ContractErr: loadErr,
		Meta:        meta,
	})

	fmt.Printf("evidence written to %s\n", res.OutDir)
	os.Exit(res.ExitCode)
}
