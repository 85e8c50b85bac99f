// Command booking-race fires concurrent identical booking requests at the booking API and reports
// how many were admitted. Against a healthy deployment exactly one request succeeds.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
)

func main() {
	var (
		baseURL      = flag.String("base-url", getenv("BASE_URL", "http://localhost:8083"), "booking service base url")
		unit         = flag.String("unit-id", getenv("UNIT_ID", ""), "unit id")
		professional = flag.String("professional-id", getenv("PROFESSIONAL_ID", ""), "professional id")
		service      = flag.String("service-id", getenv("SERVICE_ID", ""), "service id")
		date         = flag.String("date", time.Now().AddDate(0, 0, 1).Format("2006-01-02"), "appointment date (YYYY-MM-DD)")
		start        = flag.String("start", "10:00", "start time (HH:MM)")
		n            = flag.Int("n", 20, "concurrent requests")
		secret       = flag.String("jwt-secret", getenv("AUTH_JWT_SECRET", ""), "sign a customer token with this secret")
		timeout      = flag.Duration("timeout", 10*time.Second, "overall timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*unit) == "" || strings.TrimSpace(*professional) == "" || strings.TrimSpace(*service) == "" {
		fatal("unit-id, professional-id and service-id are required")
	}
	if *n < 1 {
		fatal("n must be positive")
	}

	var token string
	if *secret != "" {
		var err error
		token, err = auth.SignHS256(auth.Actor{UserID: "booking-race", UnitID: *unit, Role: auth.RoleCustomer}, *secret, time.Minute)
		if err != nil {
			fatal(err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	r := race{
		client:  &http.Client{Timeout: *timeout},
		baseURL: strings.TrimRight(*baseURL, "/"),
		token:   token,
		request: bookingRequest{
			UnitID:         *unit,
			ProfessionalID: *professional,
			ServiceID:      *service,
			Date:           *date,
			StartTime:      *start,
			ClientName:     "Race Client",
			ClientPhone:    "+10000000000",
		},
	}
	res := r.run(ctx, *n)
	fmt.Printf("requests=%d created=%d conflict=%d other=%d errors=%d\n", *n, res.Created, res.Conflict, res.Other, res.Errors)
	if res.Created > 1 {
		fmt.Fprintln(os.Stderr, "double booking detected")
		os.Exit(2)
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
