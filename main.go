/*
Ohana is a population-genetics inference toolkit. It jointly estimates
per-individual ancestry proportions and per-component allele frequencies,
fits the covariance structure relating the ancestral components, and scans
individual markers for evidence of selection against the fitted neutral
covariance.

usage: ohana [ -h | -v ] <command> [options] <arguments>

commands:

	qpas		estimate ancestry proportions (Q) and allele frequencies (F)
	nemeco		fit the component covariance matrix (C) to the frequencies
	selscan		scan markers by interpolating the covariance matrix
	neoscan		scan markers for time-weighted frequency shifts
	cov2nwk		convert a covariance matrix to a Newick tree

flags:

	-h	prints this message and exits
	-v	prints version number and exits

examples:

	  ancestry estimation:
		ohana qpas -ksize 4 -seed 1864 -epsilon 1e-6 -qout q.matrix -fout f.matrix g.dgm

	  covariance fit against a tree:
		ohana nemeco -tin tree.nwk -tout fit.nwk -cout c.matrix g.dgm f.matrix

	  selection scans:
		ohana selscan -steps 20 g.dgm f.matrix c.matrix > scores.tsv
		ohana neoscan g.lgm q.matrix f.matrix years.matrix > scores.tsv
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"ohana/internal/cli"
)

const (
	Version    = "v1.0.0"
	ErrMessage = "ohana encountered an error ::"
)

var commands = map[string]func(args []string, out io.Writer) error{
	"qpas":    cli.RunQPAS,
	"nemeco":  cli.RunNemeco,
	"selscan": cli.RunSelscan,
	"neoscan": cli.RunNeoscan,
	"cov2nwk": cli.RunCov2Nwk,
}

func usage() {
	fmt.Fprint(os.Stderr,
		"usage: ohana [ -h | -v ] <command> [options] <arguments>\n",
		"\n",
		"commands:\n\n",
		"  qpas\t\testimate ancestry proportions (Q) and allele frequencies (F)\n",
		"  nemeco\tfit the component covariance matrix (C) to the frequencies\n",
		"  selscan\tscan markers by interpolating the covariance matrix\n",
		"  neoscan\tscan markers for time-weighted frequency shifts\n",
		"  cov2nwk\tconvert a covariance matrix to a Newick tree\n",
		"\n",
		"flags:\n\n",
	)
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr,
		"\n",
		"run \"ohana <command> -h\" for the options of a command\n",
	)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	flag.Usage = usage
	help := flag.Bool("h", false, "prints this message and exits")
	ver := flag.Bool("v", false, "prints version number and exits")
	flag.Parse()
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if *ver {
		fmt.Printf("ohana version %s\n", Version)
		os.Exit(0)
	}
	if flag.NArg() < 1 {
		parserError("a command is required")
	}
	command, ok := commands[flag.Arg(0)]
	if !ok {
		parserError(fmt.Sprintf("%q is not a valid command", flag.Arg(0)))
	}
	if err := command(flag.Args()[1:], os.Stdout); err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
}

// prints message, usage, and exits (status code 1)
func parserError(message string) {
	fmt.Fprintln(os.Stderr, message)
	flag.Usage()
	os.Exit(1)
}
