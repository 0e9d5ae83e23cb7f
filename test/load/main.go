// Command load floods the communications endpoint of a running api and
// reports throughput and latency percentiles.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

type settings struct {
	BaseURL  string
	Email    string
	Password string
	RPS      int
	Duration int
	Workers  int
}

type stats struct {
	ok    atomic.Int64
	fail  atomic.Int64
	mu    sync.Mutex
	times []time.Duration
}

func (s *stats) observe(d time.Duration, ok bool) {
	if ok {
		s.ok.Add(1)
	} else {
		s.fail.Add(1)
	}
	s.mu.Lock()
	s.times = append(s.times, d)
	s.mu.Unlock()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func login(client *fasthttp.Client, s settings) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": s.Email, "password": s.Password})
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.BaseURL + "/api/token")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	if err := client.DoTimeout(req, resp, 10*time.Second); err != nil {
		return "", err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("login answered %d: %s", resp.StatusCode(), resp.Body())
	}
	var pair struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(resp.Body(), &pair); err != nil {
		return "", err
	}
	return pair.Access, nil
}

func send(client *fasthttp.Client, url, token string, body []byte, st *stats) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	start := time.Now()
	err := client.DoTimeout(req, resp, 30*time.Second)
	st.observe(time.Since(start), err == nil && resp.StatusCode() == fasthttp.StatusCreated)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func main() {
	s := settings{
		BaseURL:  strings.TrimRight(envOr("TARGET_URL", "http://localhost:8080"), "/"),
		Email:    envOr("LOAD_EMAIL", "admin@lending.local"),
		Password: os.Getenv("LOAD_PASSWORD"),
		RPS:      envInt("REQUESTS_PER_SECOND", 500),
		Duration: envInt("DURATION_SECONDS", 30),
		Workers:  envInt("CONCURRENT_WORKERS", 100),
	}
	client := &fasthttp.Client{MaxConnsPerHost: s.Workers}

	token, err := login(client, s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]string{
		"to":      "+919800000001",
		"channel": "SMS",
		"message": "EMI of Rs 4,500 is due on the 5th",
	})
	url := s.BaseURL + "/api/v1/communications/messages"

	fmt.Printf("target %s: %d rps for %ds with %d workers\n", url, s.RPS, s.Duration, s.Workers)

	st := &stats{}
	jobs := make(chan struct{}, s.RPS)
	var wg sync.WaitGroup
	for i := 0; i < s.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				send(client, url, token, body, st)
			}
		}()
	}

	start := time.Now()
	for sec := 1; sec <= s.Duration; sec++ {
		tick := time.Now()
		for j := 0; j < s.RPS; j++ {
			jobs <- struct{}{}
		}
		fmt.Printf("[%ds] ok %d failed %d\n", sec, st.ok.Load(), st.fail.Load())
		if d := time.Since(tick); d < time.Second {
			time.Sleep(time.Second - d)
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	times := st.times
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	var sum time.Duration
	for _, t := range times {
		sum += t
	}
	total := st.ok.Load() + st.fail.Load()

	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("requests   %d (%d ok, %d failed)\n", total, st.ok.Load(), st.fail.Load())
	fmt.Printf("rps        %.1f\n", float64(total)/elapsed.Seconds())
	if len(times) > 0 {
		fmt.Printf("avg        %.2f ms\n", ms(sum/time.Duration(len(times))))
		fmt.Printf("p50/95/99  %.2f / %.2f / %.2f ms\n", ms(percentile(times, .5)), ms(percentile(times, .95)), ms(percentile(times, .99)))
		fmt.Printf("min/max    %.2f / %.2f ms\n", ms(times[0]), ms(times[len(times)-1]))
	}
}
