package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/armcore/arm7tdmi/controller"
)

// REPL is a minimal line-oriented front end over controller.Controller,
// standing in for the windowed debugger UI that spec §1 places out of
// scope. It issues exactly the host commands of §6, one per line.
type REPL struct {
	ctrl    *controller.Controller
	history *CommandHistory
	out     io.Writer
}

// NewREPL returns a REPL driving ctrl, writing prompts and results to out.
func NewREPL(ctrl *controller.Controller, out io.Writer) *REPL {
	return &REPL{ctrl: ctrl, history: NewCommandHistory(), out: out}
}

// Run reads commands from in until EOF or a `quit` command.
func (r *REPL) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "(arm) ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.history.Add(line)
		if line == "quit" || line == "exit" {
			return nil
		}
		r.dispatch(line)
	}
}

func (r *REPL) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "load":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "usage: load <path>")
			return
		}
		if diags := r.ctrl.LoadProgram(controller.LoadProgramRequest{Path: args[0]}); diags != nil {
			for _, d := range diags {
				fmt.Fprintf(r.out, "line %d: %s\n", d.LineNumber, d.Message)
			}
			return
		}
		fmt.Fprintln(r.out, "ok")

	case "step":
		n := uint32(1)
		if len(args) == 1 {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				fmt.Fprintln(r.out, "usage: step [n]")
				return
			}
			n = uint32(v)
		}
		if echo, ok := r.ctrl.StepTimes(n); ok {
			fmt.Fprint(r.out, echo)
		}
		r.printInfo()

	case "run":
		for r.ctrl.ProcessorInfo().State == "Running" {
			if echo, ok := r.ctrl.StepTimes(1000); ok {
				fmt.Fprint(r.out, echo)
			}
		}
		r.printInfo()

	case "reset":
		hard := len(args) == 1 && args[0] == "hard"
		r.ctrl.Reset(hard)
		fmt.Fprintln(r.out, "ok")

	case "break":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "usage: break <addr>")
			return
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
		r.ctrl.Breakpoint(addr, true)
		fmt.Fprintln(r.out, "ok")

	case "unbreak":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "usage: unbreak <addr>")
			return
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
		r.ctrl.Breakpoint(addr, false)
		fmt.Fprintln(r.out, "ok")

	case "continue":
		r.ctrl.HitBreakpoint()
		fmt.Fprintln(r.out, "ok")

	case "input":
		r.ctrl.SetUserInput(strings.Join(args, " "))
		fmt.Fprintln(r.out, "ok")

	case "regs":
		regs := r.ctrl.Registers()
		for i, v := range regs {
			fmt.Fprintf(r.out, "r%-3d = 0x%08X\n", i, v)
		}

	case "info":
		r.printInfo()

	case "line":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "usage: line <addr>")
			return
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
		la := r.ctrl.LineAt(addr)
		if la.Instr != nil {
			fmt.Fprintf(r.out, "0x%08X: %s\n", la.Value, *la.Instr)
		} else {
			fmt.Fprintf(r.out, "0x%08X\n", la.Value)
		}

	default:
		fmt.Fprintf(r.out, "unknown command: %s\n", cmd)
	}
}

func (r *REPL) printInfo() {
	info := r.ctrl.ProcessorInfo()
	fmt.Fprintf(r.out, "state=%s steps=%d pc_cond=%s\n", info.State, info.Steps, info.CurrentCond)
	if info.ErrorMessage != "" {
		fmt.Fprintf(r.out, "error: %s\n", info.ErrorMessage)
	}
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return uint32(v), nil
}
