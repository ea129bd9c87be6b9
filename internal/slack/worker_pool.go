package slack

import (
	"context"
	"fmt"
	"sync"

	"relay_bot/internal/logger"
)

// HandlerTask Handler 任务。Run 返回的错误与 panic 都交给 OnError，
// 保证单个事件的失败不会影响事件流。
type HandlerTask struct {
	Ctx     context.Context
	Name    string
	Run     func(ctx context.Context) error
	OnError func(ctx context.Context, err error)
}

// WorkerPool Handler 工作池
type WorkerPool struct {
	taskQueue chan HandlerTask
	wg        sync.WaitGroup
	workers   int
}

// NewWorkerPool 创建工作池
// workers: worker 协程数量
// queueSize: 任务队列大小
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		taskQueue: make(chan HandlerTask, queueSize),
		workers:   workers,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

// worker 工作协程
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger.L().Debugf("Worker %d started", id)

	for task := range p.taskQueue {
		p.execute(id, task)
	}

	logger.L().Debugf("Worker %d stopped", id)
}

// execute 执行单个任务，带 panic recovery
func (p *WorkerPool) execute(id int, task HandlerTask) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.L().Errorf("Worker %d: handler panic recovered: task=%s panic=%v", id, task.Name, r)
				err = fmt.Errorf("handler %s panicked: %v", task.Name, r)
			}
		}()
		err = task.Run(task.Ctx)
	}()

	if err != nil && task.OnError != nil {
		task.OnError(task.Ctx, err)
	}
}

// Submit 提交任务到工作池
func (p *WorkerPool) Submit(task HandlerTask) {
	select {
	case p.taskQueue <- task:
		// 任务成功提交
	default:
		logger.L().Warnf("Worker pool queue is full, task %s dropped", task.Name)
	}
}

// Shutdown 优雅关闭工作池
// 等待所有正在执行的任务完成
func (p *WorkerPool) Shutdown() {
	logger.L().Info("Shutting down worker pool...")

	close(p.taskQueue)
	p.wg.Wait()

	logger.L().Info("Worker pool shut down successfully")
}
