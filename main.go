package main

import (
	"os"

	"github.com/Sena-ops/leakguard/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
