package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Amr-9/keyhunter/pkg/generator"
)

// resultFile appends discoveries to a private file.
type resultFile struct {
	mu sync.Mutex
	f  *os.File
}

func openResultFile(path string) (*resultFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &resultFile{f: f}, nil
}

func (r *resultFile) Write(res generator.Result) error {
	entry := fmt.Sprintf(`%s: %s
  Key:    %s
  Score:  %d (GPU %d, round %d)
  Found:  %s

`, res.Target, res.Address, res.PrivateKey, res.Score, res.Device, res.Round, time.Now().Format("2006-01-02 15:04:05"))

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.f.WriteString(entry)
	return err
}

func (r *resultFile) Close() error {
	return r.f.Close()
}
