// Package linkstore persists the pending job list as a newline-delimited
// file of URLs. It is the on-disk source of truth: a URL leaves the file
// only when its download succeeded.
package linkstore

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"autoytdlp/internal/util"
)

// Store reads and rewrites a links file. All writes go through an atomic
// temp-file-and-rename so an interrupted save never truncates the list.
// A single mutex serializes read-modify-write cycles across workers.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the links file and returns its URLs in order, with blank
// lines and surrounding whitespace dropped. A missing file is an empty
// list, not an error.
func (s *Store) Load() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read links file %s: %w", s.path, err)
	}

	var links []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			links = append(links, line)
		}
	}
	return links, nil
}

// Save rewrites the links file with the given URLs, de-duplicated while
// preserving first-seen order.
func (s *Store) Save(links []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(links)
}

func (s *Store) saveLocked(links []string) error {
	seen := make(map[string]struct{}, len(links))
	unique := make([]string, 0, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		unique = append(unique, link)
	}

	data := strings.Join(unique, "\n")
	if data != "" {
		data += "\n"
	}
	return util.WriteFileAtomic(s.path, []byte(data))
}

// Remove deletes url from the links file, leaving other entries in place.
// Called on successful download so the URL is not retried on reload.
func (s *Store) Remove(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.loadLocked()
	if err != nil {
		return err
	}

	kept := links[:0]
	for _, link := range links {
		if link != strings.TrimSpace(url) {
			kept = append(kept, link)
		}
	}
	return s.saveLocked(kept)
}

// Append adds urls to the end of the links file, skipping entries already
// present.
func (s *Store) Append(urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.loadLocked()
	if err != nil {
		return err
	}
	return s.saveLocked(append(links, urls...))
}
