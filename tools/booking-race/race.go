package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

type bookingRequest struct {
	UnitID         string `json:"unit_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
}

type result struct {
	Created  int
	Conflict int
	Other    int
	Errors   int
}

type race struct {
	client  *http.Client
	baseURL string
	token   string
	request bookingRequest
}

// run releases n goroutines at once and tallies the responses.
func (r race) run(ctx context.Context, n int) result {
	body, _ := json.Marshal(r.request)

	var (
		mu  sync.Mutex
		res result
		wg  sync.WaitGroup
	)
	gate := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			status, err := r.post(ctx, body)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Errors++
			case status == http.StatusCreated:
				res.Created++
			case status == http.StatusConflict:
				res.Conflict++
			default:
				res.Other++
			}
		}()
	}
	close(gate)
	wg.Wait()
	return res
}

func (r race) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/appointments", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
