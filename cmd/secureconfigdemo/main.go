package main

import (
	"os"

	"github.com/reddit/secureconfig.go/cmd/lib/secureconfigdemo"
)

func main() {
	os.Exit(secureconfigdemo.Run())
}
