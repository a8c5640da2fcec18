package main

import (
	"fmt"
	"io"
	"os"

	"github.com/zurustar/enginekit/pkg/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run はアプリケーションを実行し、プロセスの終了コードを返す
func run(args []string, stderr io.Writer) int {
	application := app.New(nil)
	if err := application.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
