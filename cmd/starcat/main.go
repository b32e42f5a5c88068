// Command starcat augments astronomical catalogs with distances, Cartesian
// positions and velocities, neighbor counts and photometric quantities.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
