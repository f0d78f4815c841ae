package main

import (
	"os"

	"github.com/TheusHen/mage/mage/magecmd"
)

func main() {
	if err := magecmd.Execute(); err != nil {
		os.Exit(1)
	}
}
