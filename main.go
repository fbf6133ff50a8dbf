package main

import (
	"os"

	tohostcli "github.com/carlmontanari/tohost/cli"
)

func main() {
	err := tohostcli.Entrypoint().Run(os.Args)
	if err != nil {
		panic(err)
	}
}
