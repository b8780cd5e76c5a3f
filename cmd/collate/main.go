package main

import (
	"os"

	"collate/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
