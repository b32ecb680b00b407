package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type voucherStats struct {
	Available int `json:"available"`
	Assigned  int `json:"assigned"`
	Total     int `json:"total"`
}

type enrollment struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	VoucherID  *string `json:"voucher_id"`
	VoucherURL *string `json:"voucher_url"`
}

type report struct {
	SessionID string
	Stats     voucherStats
	Checked   int
	Missing   []enrollment
}

func main() {
	var (
		base      string
		token     string
		sessionID string
		timeout   time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "Booking API base URL including the prefix")
	flag.StringVar(&token, "token", os.Getenv("BOOKING_API_TOKEN"), "Admin bearer token")
	flag.StringVar(&sessionID, "session", "", "Session ID to audit")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if strings.TrimSpace(sessionID) == "" {
		log.Fatal("-session is required")
	}
	if strings.TrimSpace(token) == "" {
		log.Fatal("-token or BOOKING_API_TOKEN is required")
	}

	client := &http.Client{Timeout: timeout}
	res, err := audit(client, base, token, sessionID)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	printReport(res)
	if len(res.Missing) > res.Stats.Available {
		os.Exit(1)
	}
}

func audit(client *http.Client, base, token, sessionID string) (*report, error) {
	res := &report{SessionID: sessionID}

	var stats envelope[voucherStats]
	if err := getJSON(client, base, "/admin/sessions/"+url.PathEscape(sessionID)+"/vouchers/stats", token, &stats); err != nil {
		return nil, fmt.Errorf("voucher stats: %w", err)
	}
	res.Stats = stats.Data

	for _, status := range []string{"confirmed", "completed"} {
		query := url.Values{}
		query.Set("session_id", sessionID)
		query.Set("status", status)
		query.Set("page_size", "200")

		var page envelope[[]enrollment]
		if err := getJSON(client, base, "/admin/enrollments?"+query.Encode(), token, &page); err != nil {
			return nil, fmt.Errorf("%s enrollments: %w", status, err)
		}
		for _, e := range page.Data {
			res.Checked++
			if e.VoucherID == nil {
				res.Missing = append(res.Missing, e)
			}
		}
	}
	return res, nil
}

func getJSON(client *http.Client, base, path, token string, dest interface{}) error {
	if client == nil {
		return errors.New("nil client")
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, dest)
}

func printReport(res *report) {
	fmt.Println("Voucher Audit Report")
	fmt.Println("====================")
	fmt.Printf("Session: %s\n", res.SessionID)
	fmt.Printf("  Pool: %d available, %d assigned, %d total\n", res.Stats.Available, res.Stats.Assigned, res.Stats.Total)
	fmt.Printf("  Enrollments checked: %d\n", res.Checked)
	fmt.Printf("  Missing voucher: %d\n", len(res.Missing))
	for _, e := range res.Missing {
		fmt.Printf("    - %s %s <%s> (%s)\n", e.ID, e.Name, e.Email, e.Status)
	}
	if len(res.Missing) > 0 {
		if len(res.Missing) > res.Stats.Available {
			fmt.Printf("Pool is short by %d; import more vouchers before running backfill.\n", len(res.Missing)-res.Stats.Available)
		} else {
			fmt.Println("Run POST /admin/sessions/{id}/vouchers/backfill to assign the remaining stock.")
		}
	}
}
