// Command walletgen creates a wallet key file for the marketplace client and
// prints its account address.
package main

import (
	"flag"
	"fmt"
	"os"

	"propmarket.dapp/pmc/internal/wallet"
)

func main() {
	force := flag.Bool("force", false, "Overwrite an existing key file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-force] <output-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	outfile := flag.Arg(0)

	if _, err := os.Stat(outfile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists, use -force to overwrite\n", outfile)
		os.Exit(1)
	}

	w, err := wallet.Generate(outfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", outfile)
	fmt.Printf("Account: %s\n", w.Address())
}
