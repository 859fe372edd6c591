// Package collectors 提供系统指标的并行采集功能
package collectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Collector 定义了一个指标采集器的接口
type Collector interface {
	// Name 返回采集器名称
	Name() string
	// Collect 执行采集，返回采集结果
	Collect(ctx context.Context) (interface{}, error)
}

// CollectorResult 包装采集器返回的结果
type CollectorResult struct {
	Name   string
	Data   interface{}
	Error  error
	Timing time.Duration
}

// ParallelCollector 并行执行多个采集器
type ParallelCollector struct {
	collectors []Collector
	timeout    time.Duration
}

// NewParallelCollector 创建一个新的并行采集器
func NewParallelCollector(timeout time.Duration) *ParallelCollector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ParallelCollector{
		timeout: timeout,
	}
}

// Register 注册一个采集器
func (p *ParallelCollector) Register(c Collector) {
	p.collectors = append(p.collectors, c)
}

// CollectAll 并行执行所有采集器
// 超时未返回的采集器不出现在结果中
func (p *ParallelCollector) CollectAll(ctx context.Context) map[string]CollectorResult {
	results := make(map[string]CollectorResult, len(p.collectors))
	resultCh := make(chan CollectorResult, len(p.collectors))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range p.collectors {
		wg.Add(1)
		go func(collector Collector) {
			defer wg.Done()
			resultCh <- runOne(ctx, collector)
		}(c)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for {
		select {
		case result, ok := <-resultCh:
			if !ok {
				return results
			}
			if result.Error != nil {
				log.Debug().Err(result.Error).Str("collector", result.Name).Msg("collector failed")
			}
			results[result.Name] = result
		case <-ctx.Done():
			log.Warn().Int("done", len(results)).Int("total", len(p.collectors)).Msg("collectors timed out")
			return results
		}
	}
}

func runOne(ctx context.Context, c Collector) (res CollectorResult) {
	start := time.Now()
	res.Name = c.Name()
	defer func() {
		if r := recover(); r != nil {
			res.Data = nil
			res.Error = fmt.Errorf("collector %s panicked: %v", res.Name, r)
		}
		res.Timing = time.Since(start)
	}()
	res.Data, res.Error = c.Collect(ctx)
	return res
}
