package main

import (
	"errors"
	"sync"
	"time"
)

var errServiceFailed = errors.New("service failed")

// UnreliableService simulates a downstream dependency that can be switched
// between healthy and failing, the way an outage flips a real one.
type UnreliableService struct {
	mutex   sync.Mutex
	failing bool
	latency time.Duration
}

func NewUnreliableService(latency time.Duration) *UnreliableService {
	return &UnreliableService{latency: latency}
}

func (s *UnreliableService) SetFailing(failing bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failing = failing
}

// Call has the signature a circuit breaker protects, so it can be handed to
// Execute as a method value.
func (s *UnreliableService) Call() (any, error) {
	s.mutex.Lock()
	failing := s.failing
	s.mutex.Unlock()

	time.Sleep(s.latency)

	if failing {
		return nil, errServiceFailed
	}

	return "service succeeded", nil
}
