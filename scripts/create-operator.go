// create-operator hashes a password for ADMIN_PASSWORD_HASH and, with
// -db, stores the operator directly.
//
//	go run ./scripts -user streamer -password s3cret
//	go run ./scripts -user streamer -password s3cret -db postgres://...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dom/stream-games/internal/repository/postgres"
)

func main() {
	username := flag.String("user", "", "Operator username")
	password := flag.String("password", "", "Operator password")
	databaseURL := flag.String("db", "", "Postgres URL; when set the operator is created or updated")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Println("Error: -user and -password are required")
		flag.Usage()
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_USER=%s\n", *username)
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)

	if *databaseURL == "" {
		return
	}

	db, err := postgres.NewConnection(*databaseURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	operator, err := postgres.NewOperatorRepository(db).UpsertCredentials(ctx, *username, string(hash))
	if err != nil {
		fmt.Printf("Failed to store operator: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Operator %s stored (id %s)\n", operator.Username, operator.ID)
}
