package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

const (
	kindActivation = "activation"
	kindArchive    = "archive"
	kindProfiles   = "profiles"
)

// line is the envelope written for every JSONL entry.
type line struct {
	Kind       string              `json:"kind"`
	Activation *ActivationRecord   `json:"activation,omitempty"`
	Archive    *DeviceArchive      `json:"archive,omitempty"`
	Profiles   []ProfileActivation `json:"profiles,omitempty"`
}

// JSONLStore stores activation logs in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) write(l line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(l)
}

func (s *JSONLStore) AppendActivation(ctx context.Context, rec ActivationRecord) error {
	return s.write(line{Kind: kindActivation, Activation: &rec})
}

func (s *JSONLStore) AppendArchive(ctx context.Context, a DeviceArchive) error {
	return s.write(line{Kind: kindArchive, Archive: &a})
}

func (s *JSONLStore) AppendProfileActivations(ctx context.Context, entries []ProfileActivation) error {
	return s.write(line{Kind: kindProfiles, Profiles: entries})
}

func (s *JSONLStore) Query(ctx context.Context, q Query) ([]ActivationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return scanActivations(f, q, nil)
}

func (s *JSONLStore) Close() error { return nil }

// scanActivations appends the activation lines of r matching q to res.
// Malformed lines are skipped.
func scanActivations(r io.Reader, q Query, res []ActivationRecord) ([]ActivationRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue
		}
		if l.Kind != kindActivation || l.Activation == nil {
			continue
		}
		if !q.matches(*l.Activation) {
			continue
		}
		res = append(res, *l.Activation)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
