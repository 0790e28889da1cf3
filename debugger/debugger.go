// Package debugger provides an interactive terminal UI for stepping a
// *cpu.Cpu one instruction at a time and inspecting its architectural
// state. It talks to the core strictly through cpu's exported methods —
// Step, Read, ReadGPReg, ReadPSW, and friends — the same surface any other
// embedder would use.
package debugger

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"github.com/hejops/k0/cpu"
)

const bytesPerPage = 16

var regNames = []string{"X", "A", "C", "B", "E", "D", "L", "H"}

type model struct {
	core   *cpu.Cpu
	offset uint16 // first page row drawn around the load address
	prevPC uint16
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "j":
			m.prevPC = m.core.PC
			if err := m.core.Step(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// renderPage renders one 16-byte memory row, highlighting the cell at PC.
func (m model) renderPage(start uint16) string {
	s := fmt.Sprintf("%04x | ", start)
	for i, b := range m.core.ReadMemory(start, bytesPerPage) {
		if start+uint16(i) == m.core.PC {
			s += fmt.Sprintf("[%02x]", b)
		} else {
			s += fmt.Sprintf(" %02x ", b)
		}
	}
	return s
}

func (m model) pageTable() string {
	header := "addr | "
	for i := 0; i < bytesPerPage; i++ {
		header += fmt.Sprintf(" %01x  ", i)
	}
	rows := []string{header}
	base := m.offset - (m.offset % bytesPerPage)
	for i := -1; i < 4; i++ {
		rows = append(rows, m.renderPage(base+uint16(i*bytesPerPage)))
	}
	return strings.Join(rows, "\n")
}

func (m model) pswLine() string {
	psw := m.core.ReadPSW()
	labels := []struct {
		name string
		mask byte
	}{
		{"IE", cpu.FlagIE}, {"Z", cpu.FlagZ}, {"RBS1", cpu.FlagRBS1},
		{"AC", cpu.FlagAC}, {"RBS0", cpu.FlagRBS0}, {"-", cpu.FlagUnused},
		{"ISP", cpu.FlagISP}, {"CY", cpu.FlagCY},
	}
	var sb strings.Builder
	for _, l := range labels {
		if psw&l.mask != 0 {
			fmt.Fprintf(&sb, "%s ", l.name)
		} else {
			fmt.Fprintf(&sb, "- ")
		}
	}
	return sb.String()
}

func (m model) registerBanks() string {
	var sb strings.Builder
	current := m.core.ReadRB()
	for bank := byte(0); bank < 4; bank++ {
		marker := " "
		if bank == current {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s bank %d:", marker, bank)
		m.core.WriteRB(bank)
		for i, name := range regNames {
			fmt.Fprintf(&sb, " %s=%02x", name, m.core.ReadGPReg(byte(i)))
		}
		m.core.WriteRB(current)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) status() string {
	return fmt.Sprintf(
		"PC: %04x (was %04x)\nSP: %04x\nPSW: %02x [ %s]\n\n%s",
		m.core.PC, m.prevPC,
		m.core.SP,
		m.core.ReadPSW(), m.pswLine(),
		m.registerBanks(),
	)
}

func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.pageTable(), "    ", m.status()),
		"",
		spew.Sdump(m.core.ReadMemory(m.core.PC, 4)),
	)
}

// Run loads program into the core's memory at offset, sets pc, and drives
// an interactive step-through TUI until the user quits or Step returns an
// error.
func Run(core *cpu.Cpu, program []byte, offset, pc uint16) error {
	core.WriteMemory(offset, program)
	core.PC = pc
	m, err := tea.NewProgram(model{core: core, offset: offset}).Run()
	if err != nil {
		return err
	}
	if result, ok := m.(model); ok && result.err != nil {
		return result.err
	}
	return nil
}
