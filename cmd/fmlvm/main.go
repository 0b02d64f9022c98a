// Command fmlvm runs, disassembles, or inspects a serialized bytecode
// Program. It never parses source: programs are produced elsewhere (test
// helpers, another tool) and handed to fmlvm as a `.fmlc` file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kondziu/fml/pkg/bytecode"
	"github.com/kondziu/fml/pkg/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCommand(os.Args[2:])
	case "disassemble", "disasm":
		disassembleCommand(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("fmlvm version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("fmlvm - stack-based bytecode interpreter")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fmlvm run [-heap] -f <program.fmlc>    Run a serialized program")
	fmt.Println("  fmlvm disassemble -f <program.fmlc>    Print a program's constants and code")
	fmt.Println("  fmlvm version                          Show version")
	fmt.Println("  fmlvm help                              Show this help")
}

func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	file := fs.String("f", "", "path to a serialized .fmlc program")
	dumpHeap := fs.Bool("heap", false, "print the final heap contents after the program halts")
	fs.Parse(args)

	program := loadProgram(*file)

	interp, err := vm.New(program, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := interp.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(1)
	}

	if *dumpHeap {
		fmt.Println("\nHeap:")
		for i, entry := range interp.State.Heap.All() {
			fmt.Printf("  [%d] %s\n", i, entry.String())
		}
	}
}

func disassembleCommand(args []string) {
	fs := flag.NewFlagSet("disassemble", flag.ExitOnError)
	file := fs.String("f", "", "path to a serialized .fmlc program")
	fs.Parse(args)

	program := loadProgram(*file)
	program.Dump(os.Stdout)
}

func loadProgram(path string) *bytecode.Program {
	if path == "" {
		fmt.Fprintln(os.Stderr, "error: -f <program.fmlc> is required")
		os.Exit(1)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	program, err := bytecode.Deserialize(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error decoding %s: %v\n", path, err)
		os.Exit(1)
	}
	return program
}
