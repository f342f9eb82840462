// nvmctl is an interactive REPL for driving a simulated NvM controller
// by hand: register blocks, submit reads/writes, step the dispatcher,
// and inspect per-block state and diagnostics between ticks.
//
// Commands:
//
//	register <id> <kind> <size> <primary> [backup] [dataset_count] [crc]
//	                                Register a block (kind: native|redundant|dataset)
//	load <path> [--yaml]            Register every block from a config file
//	write <id> <hex|text>           Submit a write job
//	read <id>                       Submit a read job
//	writeall / readall              Submit an aggregate job
//	setindex <id> <index>           Retarget a Dataset block's active slot
//	tick [n]                        Run MainFunction n times (default 1)
//	status <id>                     Show a block's state, result, mirror
//	diag                            Show controller diagnostics
//	help                            Show this help
//	exit / quit / q                 Exit
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/nvm"
	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/config"
	"github.com/calvinalkan/nvm/crc"
	"github.com/calvinalkan/nvm/internal/clock"
	"github.com/calvinalkan/nvm/medium"
)

func main() {
	if err := (&REPL{
		controller: nvm.New(medium.New(medium.DefaultParams(), medium.Hooks{}), clock.NewVirtual(0)),
		mirrors:    make(map[uint8][]byte),
		sizes:      make(map[uint8]int),
	}).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// REPL is the interactive command loop over one live Controller.
type REPL struct {
	controller *nvm.Controller
	mirrors    map[uint8][]byte
	sizes      map[uint8]int
	liner      *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".nvmctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("nvmctl - interactive NvM controller")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("nvmctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "register":
			r.cmdRegister(args)

		case "load":
			r.cmdLoad(args)

		case "write":
			r.cmdWrite(args)

		case "read":
			r.cmdRead(args)

		case "writeall":
			r.cmdWriteAll()

		case "readall":
			r.cmdReadAll()

		case "setindex":
			r.cmdSetIndex(args)

		case "tick":
			r.cmdTick(args)

		case "status":
			r.cmdStatus(args)

		case "diag":
			r.cmdDiag()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"register", "load", "write", "read", "writeall", "readall",
		"setindex", "tick", "status", "diag", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  register <id> <kind> <size> <primary> [backup] [dataset_count] [crc]")
	fmt.Println("                                   Register a block (kind: native|redundant|dataset)")
	fmt.Println("  load <path> [--yaml]             Register every block from a config file")
	fmt.Println("  write <id> <hex|text>            Submit a write job")
	fmt.Println("  read <id>                        Submit a read job")
	fmt.Println("  writeall / readall               Submit an aggregate job")
	fmt.Println("  setindex <id> <index>            Retarget a Dataset block's active slot")
	fmt.Println("  tick [n]                         Run MainFunction n times (default 1)")
	fmt.Println("  status <id>                      Show a block's state, result, mirror")
	fmt.Println("  diag                             Show controller diagnostics")
	fmt.Println("  help                             Show this help")
	fmt.Println("  exit / quit / q                  Exit")
}

func parseBlockID(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid block id %q: %w", s, err)
	}

	return uint8(v), nil
}

func (r *REPL) cmdRegister(args []string) {
	if len(args) < 4 {
		fmt.Println("Usage: register <id> <kind> <size> <primary> [backup] [dataset_count] [crc]")

		return
	}

	id, err := parseBlockID(args[0])
	if err != nil {
		fmt.Println(err)

		return
	}

	kind, err := parseKind(args[1])
	if err != nil {
		fmt.Println(err)

		return
	}

	size, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Printf("invalid size %q: %v\n", args[2], err)

		return
	}

	primary, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Printf("invalid primary offset %q: %v\n", args[3], err)

		return
	}

	cfg := block.Config{
		BlockID:           id,
		BlockSize:         size,
		Kind:              kind,
		PrimaryOffset:     primary,
		VersionCtrlOffset: block.NoVersionCtrlOffset,
	}

	if len(args) >= 5 {
		cfg.BackupOffset, _ = strconv.Atoi(args[4])
	}

	if len(args) >= 6 {
		cfg.DatasetCount, _ = strconv.Atoi(args[5])
	}

	if len(args) >= 7 {
		crcKind, err := parseCRCKind(args[6])
		if err != nil {
			fmt.Println(err)

			return
		}

		cfg.CRCKind = crcKind
	}

	mirror := make([]byte, size)
	if err := r.controller.RegisterBlock(nvm.BlockConfig{Config: cfg, Mirror: mirror}); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.mirrors[id] = mirror
	r.sizes[id] = size

	fmt.Printf("OK: registered block#%d (%s, %d bytes)\n", id, kind, size)
}

func (r *REPL) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: load <path> [--yaml]")

		return
	}

	path := args[0]
	asYAML := len(args) >= 2 && args[1] == "--yaml"

	var (
		reg config.Registry
		err error
	)

	if asYAML {
		reg, err = config.LoadYAML(path)
	} else {
		reg, err = config.LoadHuJSON(path)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	for _, spec := range reg.Blocks {
		cfg, err := spec.BlockConfig()
		if err != nil {
			fmt.Printf("Error decoding block#%d: %v\n", spec.BlockID, err)

			continue
		}

		mirror := make([]byte, cfg.BlockSize)
		if err := r.controller.RegisterBlock(nvm.BlockConfig{Config: cfg, Mirror: mirror}); err != nil {
			fmt.Printf("Error registering block#%d: %v\n", cfg.BlockID, err)

			continue
		}

		r.mirrors[cfg.BlockID] = mirror
		r.sizes[cfg.BlockID] = cfg.BlockSize

		fmt.Printf("OK: registered block#%d (%s, %d bytes)\n", cfg.BlockID, cfg.Kind, cfg.BlockSize)
	}
}

// parsePayload parses user input as hex first, falling back to plain
// text, then pads or truncates to size (mirrors sloty's parseKey).
func parsePayload(s string, size int) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		raw = []byte(s)
	}

	buf := make([]byte, size)
	copy(buf, raw)

	return buf
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: write <id> <hex|text>")

		return
	}

	id, err := parseBlockID(args[0])
	if err != nil {
		fmt.Println(err)

		return
	}

	size, ok := r.sizes[id]
	if !ok {
		fmt.Printf("block#%d is not registered\n", id)

		return
	}

	payload := parsePayload(args[1], size)
	copy(r.mirrors[id], payload)

	if err := r.controller.WriteBlock(id, r.mirrors[id]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: write submitted for block#%d\n", id)
}

func (r *REPL) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: read <id>")

		return
	}

	id, err := parseBlockID(args[0])
	if err != nil {
		fmt.Println(err)

		return
	}

	mirror, ok := r.mirrors[id]
	if !ok {
		fmt.Printf("block#%d is not registered\n", id)

		return
	}

	if err := r.controller.ReadBlock(id, mirror); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: read submitted for block#%d\n", id)
}

func (r *REPL) cmdWriteAll() {
	if err := r.controller.WriteAll(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: write_all submitted")
}

func (r *REPL) cmdReadAll() {
	if err := r.controller.ReadAll(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: read_all submitted")
}

func (r *REPL) cmdSetIndex(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: setindex <id> <index>")

		return
	}

	id, err := parseBlockID(args[0])
	if err != nil {
		fmt.Println(err)

		return
	}

	index, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid index %q: %v\n", args[1], err)

		return
	}

	if err := r.controller.SetDataIndex(id, index); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: block#%d active index set to %d\n", id, index)
}

func (r *REPL) cmdTick(args []string) {
	n := 1

	if len(args) >= 1 {
		var err error

		n, err = strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Println("Usage: tick [n]")

			return
		}
	}

	for range n {
		r.controller.MainFunction()
	}

	fmt.Printf("OK: ran %d tick(s), queue_depth=%d\n", n, r.controller.GetDiagnostics().CurrentQueueDepth)
}

func (r *REPL) cmdStatus(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: status <id>")

		return
	}

	id, err := parseBlockID(args[0])
	if err != nil {
		fmt.Println(err)

		return
	}

	state, err := r.controller.GetErrorStatus(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	result, _ := r.controller.GetJobResult(id)

	fmt.Printf("block#%d: state=%s result=%s\n", id, state, result)

	if state == block.Recovered {
		if idx, err := r.controller.DatasetActiveIndex(id); err == nil {
			fmt.Printf("  active dataset slot: %d\n", idx)
		}
	}

	if mirror, ok := r.mirrors[id]; ok {
		fmt.Printf("  mirror: %s\n", hex.EncodeToString(mirror))
	}
}

func (r *REPL) cmdDiag() {
	d := r.controller.GetDiagnostics()
	fmt.Printf("processed=%d failed=%d retried=%d queue_depth=%d high_water_mark=%d\n",
		d.JobsProcessed, d.JobsFailed, d.JobsRetried, d.CurrentQueueDepth, d.MaxQueueDepth)
}

func parseKind(s string) (block.Kind, error) {
	switch strings.ToLower(s) {
	case "native":
		return block.Native, nil
	case "redundant":
		return block.Redundant, nil
	case "dataset":
		return block.Dataset, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want native|redundant|dataset)", s)
	}
}

func parseCRCKind(s string) (crc.Kind, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return crc.None, nil
	case "crc8":
		return crc.Crc8, nil
	case "crc16":
		return crc.Crc16, nil
	case "crc32":
		return crc.Crc32, nil
	default:
		return 0, fmt.Errorf("unknown crc kind %q (want none|crc8|crc16|crc32)", s)
	}
}
