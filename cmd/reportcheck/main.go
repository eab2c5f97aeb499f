// Command reportcheck is a smoke test against a running report server: it
// walks every published run and each of its stages.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type stageCount struct {
	Stage  string         `json:"stage"`
	Counts map[string]int `json:"counts"`
}

type runSummary struct {
	RunID  string       `json:"run_id"`
	Pair   string       `json:"pair"`
	Stages []stageCount `json:"stages"`
}

var client = &http.Client{Timeout: 10 * time.Second}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "report server base URL")
	wait := flag.Duration("wait", 2*time.Second, "time to wait for the server to start")
	flag.Parse()

	time.Sleep(*wait)

	fmt.Println("Starting report check...")

	fmt.Println("1. Health")
	if err := getJSON(*baseURL+"/healthz", nil); err != nil {
		fail("health", err)
	}
	fmt.Println("PASSED: Health")

	fmt.Println("2. Runs")
	var list struct {
		Runs []runSummary `json:"runs"`
	}
	if err := getJSON(*baseURL+"/runs", &list); err != nil {
		fail("list runs", err)
	}
	if len(list.Runs) == 0 {
		fail("list runs", fmt.Errorf("no runs published"))
	}
	fmt.Printf("PASSED: %d run(s)\n", len(list.Runs))

	fmt.Println("3. Stages")
	for _, run := range list.Runs {
		if len(run.Stages) != 3 {
			fail(run.RunID, fmt.Errorf("want 3 stages, got %d", len(run.Stages)))
		}
		for _, st := range run.Stages {
			for _, side := range []string{"sr", "tg"} {
				url := fmt.Sprintf("%s/runs/%s/stages/%s?side=%s&limit=5", *baseURL, run.RunID, st.Stage, side)
				if err := getJSON(url, nil); err != nil {
					fail(run.RunID+" "+st.Stage, err)
				}
			}
			fmt.Printf("   %s %s: sr=%d tg=%d\n", run.Pair, st.Stage, st.Counts["sr"], st.Counts["tg"])
		}
	}
	fmt.Println("PASSED: Stages")

	fmt.Println("4. Metrics")
	resp, err := client.Get(*baseURL + "/metrics")
	if err != nil {
		fail("metrics", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail("metrics", fmt.Errorf("status %d", resp.StatusCode))
	}
	fmt.Println("PASSED: Metrics")
}

func fail(step string, err error) {
	fmt.Printf("FAILED: %s: %v\n", step, err)
	os.Exit(1)
}

func getJSON(url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
