// Command spotify-stats serves and inspects cached Spotify listening stats.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/justestif/go-spotify-stats/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
