// Standalone injector: open a socket to readsb and send one ADS-B command
// (two string-encoded hex sentences).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"meshbridge/internal/metrics"
	"meshbridge/internal/readsb"
	"meshbridge/pkg/utils"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s host port sentence1 sentence2\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 4 {
		flag.Usage()
		os.Exit(2)
	}

	host := flag.Arg(0)
	port, err := strconv.Atoi(flag.Arg(1))
	utils.CheckFatal(err, "parsing port")

	client := readsb.New(host, port, metrics.Noop())
	utils.CheckFatal(client.Connect(), "connecting to readsb")
	defer client.Close()

	if err := client.Inject(flag.Arg(2), flag.Arg(3)); err != nil {
		log.Fatalf("Failed to inject command: %v", err)
	}
}
