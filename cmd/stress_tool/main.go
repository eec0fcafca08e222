package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"balkly_rewards/pkg/utils"

	"github.com/urfave/cli/v3"
)

// 并发领券压测：每个用户同时发起多次领取，最终只能拿到同一张券
func main() {
	cmd := &cli.Command{
		Name:  "stress_tool",
		Usage: "并发领券压测",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "服务地址"},
			&cli.StringFlag{Name: "secret", Usage: "JWT 密钥", Sources: cli.EnvVars("JWT_SECRET"), Required: true},
			&cli.StringFlag{Name: "partner", Usage: "商户 ID", Required: true},
			&cli.StringFlag{Name: "offer", Usage: "优惠 ID，可选"},
			&cli.IntFlag{Name: "users", Value: 200, Usage: "模拟用户数"},
			&cli.IntFlag{Name: "parallel", Value: 10, Usage: "每个用户的并发请求数"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type issueResult struct {
	status int
	code   string
	err    error
}

func run(ctx context.Context, cmd *cli.Command) error {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	client := &http.Client{Transport: t, Timeout: 10 * time.Second}

	body := map[string]string{"partnerId": cmd.String("partner")}
	if offer := cmd.String("offer"); offer != "" {
		body["offerId"] = offer
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	users := int(cmd.Int("users"))
	parallel := int(cmd.Int("parallel"))
	endpoint := cmd.String("url") + "/vouchers"

	fmt.Printf("开始压测：%d 个用户，每人并发 %d 次领券\n", users, parallel)
	start := time.Now()

	var (
		mu        sync.Mutex
		created   int
		reused    int
		failed    int
		violators []string
	)

	var wg sync.WaitGroup
	for i := 1; i <= users; i++ {
		userID := fmt.Sprintf("stress-user-%d", i)
		token, _, err := utils.GenerateToken(cmd.String("secret"), userID, utils.RoleUser, time.Hour)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			results := issueConcurrently(ctx, client, endpoint, token, payload, parallel)

			codes := map[string]bool{}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				switch {
				case r.err != nil:
					failed++
				case r.status == http.StatusCreated:
					created++
					codes[r.code] = true
				case r.status == http.StatusOK:
					reused++
					codes[r.code] = true
				default:
					failed++
				}
			}
			if len(codes) > 1 {
				violators = append(violators, userID)
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)
	total := users * parallel
	fmt.Println("--------------------------------------------------")
	fmt.Printf("耗时: %v, 总请求数: %d, QPS: %.2f\n", duration, total, float64(total)/duration.Seconds())
	fmt.Printf("新签发: %d (预期: 不超过 %d)\n", created, users)
	fmt.Printf("复用已有券: %d\n", reused)
	fmt.Printf("失败: %d\n", failed)
	fmt.Println("--------------------------------------------------")

	if len(violators) > 0 {
		return fmt.Errorf("%d users received more than one active voucher, e.g. %s", len(violators), violators[0])
	}
	return nil
}

func issueConcurrently(ctx context.Context, client *http.Client, endpoint, token string, payload []byte, n int) []issueResult {
	results := make([]issueResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = issue(ctx, client, endpoint, token, payload)
		}(i)
	}
	wg.Wait()
	return results
}

func issue(ctx context.Context, client *http.Client, endpoint, token string, payload []byte) issueResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return issueResult{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return issueResult{err: err}
	}
	defer resp.Body.Close()

	var out struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return issueResult{status: resp.StatusCode, err: err}
	}
	return issueResult{status: resp.StatusCode, code: out.Data.Code}
}
