package main

import (
	"fmt"
	"os"

	"github.com/KhaosKoder/khaos-settings/app"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
)

func main() {
	err := app.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		// domain failures map to stable exit codes
		if code := fault.CodeOf(err); code != fault.CodeNone {
			os.Exit(int(code))
		}

		os.Exit(1)
	}
}
