// Command hash-password prints the stored form of a password, for seeding
// users directly in the database.
package main

import (
	"fmt"
	"os"

	"github.com/openclaw/chat-server-go/internal/auth"
	"github.com/openclaw/chat-server-go/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run ./cmd/hash-password <password>\n")
		os.Exit(1)
	}

	password := os.Args[1]
	if err := util.ValidatePassword(password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
