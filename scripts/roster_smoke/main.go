package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// step is one request in the smoke run. Path may reference {id}, which is
// filled from the student created by the first step.
type step struct {
	Name        string
	Method      string
	Path        string
	Body        string
	WantStatus  int
	WantPrefix  string
	CaptureID   bool
	Critical    bool
	contentType string
}

type result struct {
	Step     step
	Status   int
	Duration time.Duration
	Error    error
}

func main() {
	var (
		base    string
		prefix  string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "Roster API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	steps := []step{
		{Name: "health", Method: http.MethodGet, Path: "/health", WantStatus: http.StatusOK, Critical: true},
		{Name: "create", Method: http.MethodPost, Path: prefix + "/students", Body: `{"name":"Smoke Test","course":"Go","batch":"smoke","status":"active"}`, WantStatus: http.StatusCreated, CaptureID: true, Critical: true},
		{Name: "reject blank", Method: http.MethodPost, Path: prefix + "/students", Body: `{"name":" ","course":"Go","batch":"smoke","status":"active"}`, WantStatus: http.StatusBadRequest, Critical: true},
		{Name: "get", Method: http.MethodGet, Path: prefix + "/students/{id}", WantStatus: http.StatusOK, Critical: true},
		{Name: "edit", Method: http.MethodPatch, Path: prefix + "/students/{id}", Body: `{"status":"graduated"}`, WantStatus: http.StatusOK, Critical: true},
		{Name: "search", Method: http.MethodGet, Path: prefix + "/students?search=smoke", WantStatus: http.StatusOK},
		{Name: "csv export", Method: http.MethodGet, Path: prefix + "/students/export/csv", WantStatus: http.StatusOK, WantPrefix: "Student ID,Name,Course,Batch,Status"},
		{Name: "xlsx export", Method: http.MethodGet, Path: prefix + "/students/export/xlsx", WantStatus: http.StatusOK, WantPrefix: "PK"},
		{Name: "certificate", Method: http.MethodGet, Path: prefix + "/students/{id}/certificate", WantStatus: http.StatusOK, WantPrefix: "%PDF-"},
		{Name: "delete", Method: http.MethodDelete, Path: prefix + "/students/{id}", WantStatus: http.StatusNoContent, Critical: true},
		{Name: "gone", Method: http.MethodGet, Path: prefix + "/students/{id}", WantStatus: http.StatusNotFound, Critical: true},
	}

	var (
		results  []result
		breaking int
		optional int
		id       string
	)
	for _, s := range steps {
		res, captured := runStep(client, base, s, id)
		if captured != "" {
			id = captured
		}
		if res.Error != nil {
			if s.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
		if res.Error != nil && s.CaptureID {
			break
		}
	}

	printReport(results)

	fmt.Printf("Breaking failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func runStep(client *http.Client, base string, s step, id string) (result, string) {
	res := result{Step: s}
	if strings.Contains(s.Path, "{id}") {
		if id == "" {
			res.Error = errors.New("no student id captured")
			return res, ""
		}
		s.Path = strings.ReplaceAll(s.Path, "{id}", id)
	}
	if s.Body != "" {
		s.contentType = "application/json"
	}

	resp, dur, err := performRequest(client, base, s)
	res.Duration = dur
	if err != nil {
		res.Error = err
		return res, ""
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res, ""
	}
	if resp.StatusCode != s.WantStatus {
		res.Error = fmt.Errorf("want status %d, body %s", s.WantStatus, truncate(body))
		return res, ""
	}
	if s.WantPrefix != "" && !bytes.HasPrefix(body, []byte(s.WantPrefix)) {
		res.Error = fmt.Errorf("body does not start with %q", s.WantPrefix)
		return res, ""
	}
	if !s.CaptureID {
		return res, ""
	}

	var envelope struct {
		Data struct {
			StudentID string `json:"student_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data.StudentID == "" {
		res.Error = fmt.Errorf("no student id in response %s", truncate(body))
		return res, ""
	}
	return res, envelope.Data.StudentID
}

func performRequest(client *http.Client, base string, s step) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	url := strings.TrimRight(base, "/") + s.Path

	var body io.Reader
	if s.Body != "" {
		body = strings.NewReader(s.Body)
	}
	req, err := http.NewRequest(s.Method, url, body)
	if err != nil {
		return nil, 0, err
	}
	if s.contentType != "" {
		req.Header.Set("Content-Type", s.contentType)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func printReport(results []result) {
	fmt.Println("Roster Smoke Report")
	fmt.Println("===================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s %s\n", status, res.Step.Name, res.Step.Method, res.Step.Path)
		fmt.Printf("  Status: %d (%s) | Critical: %t\n", res.Status, res.Duration, res.Step.Critical)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		}
	}
}
