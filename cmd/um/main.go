// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/k0kubun/pp/v3"

	"github.com/ezrec/um/cpu"
	"github.com/ezrec/um/emulator"
)

func main() {
	var compile string
	var save bool
	var output string
	var verbose bool
	var dump bool

	flag.StringVar(&compile, "c", "", ".uma file to assemble")
	flag.BoolVar(&save, "s", false, "Save assembled program to -o, do not execute")
	flag.StringVar(&output, "o", "", "Assembled program output")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&dump, "d", false, "Dump the program listing to stderr")

	flag.Parse()

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	switch {
	case len(compile) != 0:
		if flag.NArg() != 0 {
			log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
		}

		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		emu.Program, err = emu.Assembler().Parse(inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case flag.NArg() == 1:
		prog, err := cpu.LoadProgram(flag.Arg(0))
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
		emu.Program = prog
	default:
		log.Fatalf("usage: %v [-v] [-d] [-c source.uma [-s] [-o out.um]] [program.um]", os.Args[0])
	}

	if len(output) != 0 {
		ouf, err := os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		err = emu.Program.Marshal(ouf)
		if err == nil {
			err = ouf.Close()
		}
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
	}

	if dump {
		pp.Fprintln(os.Stderr, emu.Program.Statements)
	}

	if save {
		return
	}

	emu.Console.Input = bufio.NewReader(os.Stdin)
	stdout := bufio.NewWriter(os.Stdout)
	emu.Console.Output = stdout

	err := emu.Reset()
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	// Run flushes stdout when the program terminates.
	err = emu.Run()
	if err != nil {
		if verbose {
			log.Print(emu.Cpu.String())
		}
		log.Fatal(err)
	}

	os.Exit(emu.ExitCode())
}
