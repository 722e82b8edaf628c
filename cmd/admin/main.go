package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PrivvyRentals/pricing_api/internal/config"
	"github.com/PrivvyRentals/pricing_api/internal/database"
	"github.com/PrivvyRentals/pricing_api/internal/repository"
	"github.com/PrivvyRentals/pricing_api/internal/service"
)

// Bootstrap tool for provisioning dashboard admin accounts:
//
//	go run ./cmd/admin -email ops@example.com -name "Ops" -password s3cret
func main() {
	email := flag.String("email", "", "admin email address")
	name := flag.String("name", "", "admin display name")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *email == "" || *name == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: admin -email <email> -name <name> -password <password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	adminRepo := repository.NewAdminUserRepository(db)
	if err := service.NewAdminAuthService(adminRepo).CreateAdmin(*email, *password, *name); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("admin %s created\n", *email)
}
