package worker

import (
	"fmt"
	"sync"
	"time"

	"balkly_rewards/internal/pkg/push"
	"balkly_rewards/pkg/logger"

	"go.uber.org/zap"
)

// NotifyTask 一条待发送的核销推送
type NotifyTask struct {
	UserID      string
	Code        string
	PartnerName string
	Retry       int // 重试次数
}

// PushPool 核销推送异步发送，失败按次数退避重试，不阻塞核销请求
type PushPool struct {
	TaskQueue  chan NotifyTask
	RetryQueue chan NotifyTask // 重试队列
	Push       push.PushService
	WorkerNum  int
	MaxRetry   int // 最大重试次数
	Backoff    time.Duration

	wg sync.WaitGroup
	// mu 保护 closed，入队持读锁，Stop 持写锁后才关闭 TaskQueue
	mu     sync.RWMutex
	closed bool
}

func NewPushPool(p push.PushService, workerNum int, bufferSize int) *PushPool {
	return &PushPool{
		TaskQueue:  make(chan NotifyTask, bufferSize),
		RetryQueue: make(chan NotifyTask, bufferSize/2+1),
		Push:       p,
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		Backoff:    time.Second,
	}
}

func (p *PushPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	go p.retryWorker()
	logger.Log.Info("Push pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 关闭队列并等待在途任务发送完；重试队列中的任务丢弃
func (p *PushPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.TaskQueue)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.RetryQueue)
}

func (p *PushPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.TaskQueue {
		err := p.processTask(task)
		if err == nil {
			continue
		}
		logger.Log.Warn("Push task failed",
			zap.Int("worker", id),
			zap.String("user_id", task.UserID),
			zap.Int("retry", task.Retry),
			zap.Error(err),
		)

		// 如果未达到最大重试次数，加入重试队列
		if task.Retry >= p.MaxRetry {
			p.logFailedTask(task, err)
			continue
		}
		task.Retry++
		select {
		case p.RetryQueue <- task:
		default:
			p.logFailedTask(task, err)
		}
	}
}

func (p *PushPool) retryWorker() {
	for task := range p.RetryQueue {
		// 延迟重试，避免立即重试
		time.Sleep(time.Duration(task.Retry) * p.Backoff)
		p.enqueue(task)
	}
}

func (p *PushPool) processTask(task NotifyTask) error {
	body := "Your voucher has been redeemed."
	if task.PartnerName != "" {
		body = fmt.Sprintf("Your voucher at %s has been redeemed.", task.PartnerName)
	}
	return p.Push.PushToAccount(task.UserID, "Voucher redeemed", body, map[string]string{
		"type": "voucher_redeemed",
		"code": task.Code,
	})
}

func (p *PushPool) logFailedTask(task NotifyTask, err error) {
	logger.Log.Error("Push task dropped",
		zap.String("user_id", task.UserID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// enqueue 非阻塞入队，Stop 之后直接丢弃
func (p *PushPool) enqueue(task NotifyTask) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logFailedTask(task, fmt.Errorf("push pool stopped"))
		return
	}
	select {
	case p.TaskQueue <- task:
	default:
		p.logFailedTask(task, fmt.Errorf("push queue full"))
	}
}

// NotifyRedeemed 供券码服务调用
func (p *PushPool) NotifyRedeemed(userID, code, partnerName string) {
	p.enqueue(NotifyTask{UserID: userID, Code: code, PartnerName: partnerName})
}
