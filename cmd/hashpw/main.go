// hashpw prints a bcrypt hash of the given password, for use as
// DASHBOARD_PASSWORD_HASH in the environment.
package main

import (
	"fmt"
	"os"

	"vrcnotify/internal/helper"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(1)
	}

	hash, err := helper.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
