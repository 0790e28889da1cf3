// Command k0 loads a raw binary memory image and either steps it
// headlessly for a bounded number of instructions or launches an
// interactive debugger.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hejops/k0/cpu"
	"github.com/hejops/k0/debugger"
)

func main() {
	var pc uint16
	var sp uint16
	var offset uint16

	rootCmd := &cobra.Command{
		Use:   "k0",
		Short: "k0 emulates the core of the NEC 78K/0 instruction set",
	}

	runCmd := &cobra.Command{
		Use:   "run image",
		Short: "Step a memory image headlessly for up to --max-steps instructions or until an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxSteps, _ := cmd.Flags().GetInt("max-steps")
			core, err := loadImage(args[0], offset, pc, sp)
			if err != nil {
				return err
			}
			for i := 0; i < maxSteps; i++ {
				if err := core.Step(); err != nil {
					return fmt.Errorf("halted after %d steps: %w", i, err)
				}
			}
			fmt.Printf("ran %d steps, pc=%#04x sp=%#04x\n", maxSteps, core.PC, core.SP)
			return nil
		},
	}
	runCmd.Flags().Int("max-steps", 10000, "Maximum instructions to execute before stopping")

	debugCmd := &cobra.Command{
		Use:   "debug image",
		Short: "Load a memory image and step through it interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			core := cpu.New()
			core.SP = sp
			startPC := pc
			if startPC == 0 {
				startPC = offset
			}
			return debugger.Run(core, data, offset, startPC)
		},
	}

	for _, c := range []*cobra.Command{runCmd, debugCmd} {
		c.Flags().Uint16Var(&offset, "offset", 0, "Address to load the image at")
		c.Flags().Uint16Var(&pc, "pc", 0, "Initial program counter (defaults to --offset)")
		c.Flags().Uint16Var(&sp, "sp", 0xfe1f, "Initial stack pointer")
	}

	rootCmd.AddCommand(runCmd, debugCmd)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("k0: %v", err)
	}
}

func loadImage(path string, offset, pc, sp uint16) (*cpu.Cpu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	core := cpu.New()
	core.WriteMemory(offset, data)
	if pc == 0 {
		pc = offset
	}
	core.PC = pc
	core.SP = sp
	return core, nil
}
