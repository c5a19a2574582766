package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "dashboard base url")
	orderID := flag.String("order", "", "order id to hammer (required)")
	minutes := flag.Int("minutes", 20, "time estimate to select before sending (10/20/30)")
	refresh := flag.Bool("refresh", true, "force a poll before the test")

	// 重复通知测试：同一订单并发发送预计时间，只允许一次成功
	nSend := flag.Int("sends", 50, "concurrent send-estimate requests")
	nDeliver := flag.Int("delivers", 20, "concurrent mark-delivered requests")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	if *orderID == "" {
		fmt.Fprintln(os.Stderr, "-order is required")
		os.Exit(2)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	if *refresh {
		if r := call(client, http.MethodPost, *baseURL+"/api/refresh", nil); r.Err != nil || r.Status >= 300 {
			fmt.Printf("refresh failed: status=%d err=%v body=%s\n", r.Status, r.Err, r.Body)
		}
	}
	if r := call(client, http.MethodPut, fmt.Sprintf("%s/api/orders/%s/estimate", *baseURL, *orderID),
		map[string]int{"minutes": *minutes}); r.Err != nil || r.Status >= 300 {
		fmt.Printf("select estimate: status=%d err=%v body=%s\n", r.Status, r.Err, r.Body)
	}

	fmt.Printf("start duplicate notification test: order=%s sends=%d concurrency=%d\n", *orderID, *nSend, *concurrency)
	sendURL := fmt.Sprintf("%s/api/orders/%s/estimate/send", *baseURL, *orderID)
	sends := fanOut(*nSend, *concurrency, func(int) Result {
		return call(client, http.MethodPost, sendURL, nil)
	})
	printSummary("send_estimate", sends)
	if ok := Summarize(sends)[http.StatusOK]; ok > 1 {
		fmt.Printf("!! %d sends succeeded, expected at most 1\n", ok)
	}

	fmt.Printf("\nstart idempotent deliver test: order=%s delivers=%d concurrency=%d\n", *orderID, *nDeliver, *concurrency)
	deliverURL := fmt.Sprintf("%s/api/orders/%s/deliver", *baseURL, *orderID)
	delivers := fanOut(*nDeliver, *concurrency, func(int) Result {
		return call(client, http.MethodPost, deliverURL, nil)
	})
	printSummary("mark_delivered", delivers)

	state, err := sentState(client, *baseURL, *orderID)
	if err != nil {
		fmt.Println("state check err:", err)
		return
	}
	fmt.Println("final row state:", state)
}

// fanOut 以最多 concurrency 个并发执行 total 次 fn。
func fanOut(total, concurrency int, fn func(idx int) Result) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func call(client *http.Client, method, url string, body any) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return Result{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

// Summarize 按状态码计数，传输错误记为 0。
func Summarize(results []Result) map[int]int {
	count := map[int]int{}
	for _, r := range results {
		if r.Err != nil {
			count[0]++
			continue
		}
		count[r.Status]++
	}
	return count
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := Summarize(results)
	codes := make([]int, 0, len(count))
	for code := range count {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		if code == 0 {
			fmt.Printf("  errors -> %d\n", count[code])
			continue
		}
		fmt.Printf("  %d -> %d\n", code, count[code])
	}
}

// sentState 从看板读取该订单首行的状态，用于压测后确认只发送了一次。
func sentState(client *http.Client, baseURL, orderID string) (string, error) {
	r := call(client, http.MethodGet, baseURL+"/api/dashboard?window=Last+Month", nil)
	if r.Err != nil {
		return "", r.Err
	}
	if r.Status >= 300 {
		return "", fmt.Errorf("status=%d body=%s", r.Status, r.Body)
	}

	var out struct {
		Data struct {
			Rows []struct {
				OrderID  string `json:"order_id"`
				First    bool   `json:"first"`
				Status   string `json:"status"`
				SentText string `json:"sent_text"`
			} `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(r.Body), &out); err != nil {
		return "", err
	}
	for _, row := range out.Data.Rows {
		if row.OrderID == orderID && row.First {
			return fmt.Sprintf("status=%s sent=%q", row.Status, row.SentText), nil
		}
	}
	return "", fmt.Errorf("order %s not in the last month", orderID)
}
