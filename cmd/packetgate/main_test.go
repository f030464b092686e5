package main

import (
	"bytes"
	"testing"
)

func TestMissingContractFlagFailsValidation(t *testing.T) {
	for _, sub := range []string{"enter", "collect"} {
		t.Run(sub, func(t *testing.T) {
			var buf bytes.Buffer
			rootCmd.SetOut(&buf)
			rootCmd.SetErr(&buf)
			rootCmd.SetArgs([]string{sub})

			if err := rootCmd.Execute(); err == nil {
				t.Fatalf("%s without --contract should fail flag validation", sub)
			}
		})
	}
}
