package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
	"github.com/userhub/userhub/internal/service"
)

type seeded struct {
	UserID       string   `json:"user_id"`
	FullName     string   `json:"full_name"`
	PrimaryEmail string   `json:"primary_email"`
	Emails       []string `json:"emails"`
}

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Frances"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Hamilton", "Thompson", "Liskov", "Ritchie", "Allen"}
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		count       = flag.Int("count", 10, "Number of users to create")
		perUser     = flag.Int("emails", 2, "Email addresses per user (1-20)")
		domain      = flag.String("domain", "example.com", "Domain for generated addresses")
		password    = flag.String("password", "password123", "Password for every seeded user")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *perUser < 1 || *perUser > 20 {
		fmt.Fprintln(os.Stderr, "emails must be between 1 and 20")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	users := service.NewUserService(service.NewStore(repo), auth.NewHasher(auth.DefaultParams), service.Pagination{}, nil)

	run := time.Now().Unix()
	out := make([]seeded, 0, *count)
	for i := 0; i < *count; i++ {
		input := seedInput(i, *perUser, run, *domain, *password)
		user, err := users.CreateUser(ctx, input)
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(os.Stderr, "user %d rejected: %v\n", i, verr.Fields)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stderr, "create user:", err)
			os.Exit(1)
		}

		s := seeded{UserID: user.ID, FullName: user.FullName(), Emails: user.Addresses()}
		if p := user.PrimaryEmail(); p != nil {
			s.PrimaryEmail = p.Address
		}
		out = append(out, s)
	}

	switch strings.ToLower(*format) {
	case "plain":
		for _, s := range out {
			fmt.Printf("%s\t%s\t%s\n", s.UserID, s.FullName, s.PrimaryEmail)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// seedInput builds a deterministic user. The last address is flagged
// primary so seeded data does not always use the first-entry fallback.
func seedInput(i, perUser int, run int64, domain, password string) service.CreateUserInput {
	first := firstNames[i%len(firstNames)]
	last := lastNames[(i/len(firstNames)+i)%len(lastNames)]
	phone := fmt.Sprintf("+1 (555) %03d-%04d", i%1000, (run+int64(i))%10000)

	emails := make([]model.EmailInput, 0, perUser)
	for j := 0; j < perUser; j++ {
		primary := j == perUser-1
		emails = append(emails, model.EmailInput{
			Address:   fmt.Sprintf("%s.%s.%d.%d.%d@%s", strings.ToLower(first), strings.ToLower(last), run, i, j, domain),
			IsPrimary: &primary,
		})
	}

	return service.CreateUserInput{
		FirstName: first,
		LastName:  last,
		Phone:     &phone,
		Password:  password,
		Emails:    emails,
	}
}
