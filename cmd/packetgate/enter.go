package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/gate"
	"github.com/entrhq/packetgate/pkg/gitx"
	"github.com/entrhq/packetgate/pkg/logging"
)

var (
	enterContract    string
	enterEvidenceOut string

	enterCmd = &cobra.Command{
		Use:   "enter",
		Short: "Run the G0 admission gate against a packet contract",
		Long: `Enter validates the packet contract, reconciles the packet worktree
(creating or reusing it), checks branch identity, ancestry and push
reachability, and writes a gate evidence record. Exit code 0 means the
packet is admitted; exit code 2 means entry is denied.`,
		Run: runEnter,
	}
)

func init() {
	enterCmd.Flags().StringVar(&enterContract, "contract", "", "path to packet contract (JSON or YAML)")
	enterCmd.Flags().StringVar(&enterEvidenceOut, "evidence-out", "", "override evidence output path")
	cobra.CheckErr(enterCmd.MarkFlagRequired("contract"))
	rootCmd.AddCommand(enterCmd)
}

func runEnter(cmd *cobra.Command, args []string) {
	log, _ := logging.New("cli")
	if log != nil {
		defer log.Close()
	}

	c, loadErr := contract.Load(enterContract)
	res := gate.New(gitx.NewExec(), log).Run(cmd.Context(), gate.Request{
		Contract:    c,
		ContractErr: loadErr,
		EvidenceOut: enterEvidenceOut,
	})

	if res.WriteErr != nil {
		fmt.Fprintf(os.Stderr, "warning: evidence not written: %v\n", res.WriteErr)
	}
	if res.Decision.Allow() {
		fmt.Printf("G0 ALLOW (evidence: %s)\n", res.EvidencePath)
	} else {
		fmt.Printf("G0 DENY [%s] %s (evidence: %s)\n",
			res.Decision.Code(), res.Decision.Message(), res.EvidencePath)
	}
	os.Exit(res.ExitCode)
}
