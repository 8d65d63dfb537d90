package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"tangent/internal/tools"
)

// Manager coordinates all outbound LLM requests behind two priority lanes.
type Manager struct {
	criticalQueue   chan *Request
	backgroundQueue chan *Request

	semaphore chan struct{}

	circuitBreaker *tools.CircuitBreaker

	mu      sync.RWMutex
	metrics Metrics

	stopCh chan struct{}
	wg     sync.WaitGroup

	config *Config
}

// NewManager creates and starts the dispatcher goroutine.
func NewManager(config *Config, circuitBreaker *tools.CircuitBreaker) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	m := &Manager{
		criticalQueue:   make(chan *Request, config.CriticalQueueSize),
		backgroundQueue: make(chan *Request, config.BackgroundQueueSize),
		semaphore:       make(chan struct{}, config.MaxConcurrent),
		circuitBreaker:  circuitBreaker,
		metrics: Metrics{
			CurrentQueueDepth: map[Priority]int{
				PriorityCritical:   0,
				PriorityBackground: 0,
			},
		},
		stopCh: make(chan struct{}),
		config: config,
	}

	m.wg.Add(1)
	go m.dispatcher()

	log.Printf("[llmclient] started with %d concurrent slots", config.MaxConcurrent)
	return m
}

// Submit enqueues a request, non-blocking; a full queue drops the request.
func (m *Manager) Submit(req *Request) error {
	var queue chan *Request
	var priorityName string

	if req.Priority == PriorityCritical {
		queue = m.criticalQueue
		priorityName = "critical"
		m.mu.Lock()
		m.metrics.CriticalEnqueued++
		m.mu.Unlock()
	} else {
		queue = m.backgroundQueue
		priorityName = "background"
		m.mu.Lock()
		m.metrics.BackgroundEnqueued++
		m.mu.Unlock()
	}

	select {
	case queue <- req:
		m.mu.Lock()
		m.metrics.CurrentQueueDepth[req.Priority] = len(queue)
		m.mu.Unlock()
		return nil
	default:
		m.mu.Lock()
		if req.Priority == PriorityCritical {
			m.metrics.CriticalDropped++
		} else {
			m.metrics.BackgroundDropped++
		}
		m.mu.Unlock()

		log.Printf("[llmclient] WARNING: %s queue full, dropping request %s", priorityName, req.ID)
		return fmt.Errorf("queue full")
	}
}

// dispatcher always prefers the critical queue over the background one.
func (m *Manager) dispatcher() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return

		case req := <-m.criticalQueue:
			m.semaphore <- struct{}{}
			m.wg.Add(1)
			go m.processRequest(req)

		case req := <-m.backgroundQueue:
			select {
			case criticalReq := <-m.criticalQueue:
				m.backgroundQueue <- req
				m.semaphore <- struct{}{}
				m.wg.Add(1)
				go m.processRequest(criticalReq)
			default:
				m.semaphore <- struct{}{}
				m.wg.Add(1)
				go m.processRequest(req)
			}
		}
	}
}

func (m *Manager) processRequest(req *Request) {
	defer func() {
		<-m.semaphore
		m.wg.Done()

		m.mu.Lock()
		if req.Priority == PriorityCritical {
			m.metrics.CriticalProcessed++
		} else {
			m.metrics.BackgroundProcessed++
		}
		m.mu.Unlock()
	}()

	startTime := time.Now()

	if req.Context.Err() != nil {
		req.ErrorCh <- req.Context.Err()
		return
	}

	ctx, cancel := context.WithTimeout(req.Context, req.Timeout)
	defer cancel()

	resp, err := m.executeHTTPRequest(ctx, req)
	if err != nil {
		log.Printf("[llmclient] request %s failed after %s: %v", req.ID, time.Since(startTime), err)
		req.ErrorCh <- err
		return
	}

	select {
	case req.ResponseCh <- resp:
	case <-ctx.Done():
		req.ErrorCh <- ctx.Err()
	}
}

func (m *Manager) executeHTTPRequest(ctx context.Context, req *Request) (*Response, error) {
	if m.circuitBreaker != nil && m.circuitBreaker.IsOpen() {
		return nil, fmt.Errorf("circuit breaker open")
	}

	jsonData, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", req.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: req.Timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: req.Timeout,
			IdleConnTimeout:       req.Timeout,
			MaxIdleConns:          10,
		},
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if m.circuitBreaker != nil {
			m.circuitBreaker.Call(func() error { return err })
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if m.circuitBreaker != nil {
		m.circuitBreaker.Call(func() error { return nil })
	}

	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// Metrics returns current queue statistics.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := m.metrics
	metrics.CurrentQueueDepth[PriorityCritical] = len(m.criticalQueue)
	metrics.CurrentQueueDepth[PriorityBackground] = len(m.backgroundQueue)
	return metrics
}

// Stop gracefully shuts down the dispatcher.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	log.Printf("[llmclient] stopped")
}
