// Package staging replays postings captured to disk by an external crawler.
// A region's postings live in <dir>/<region>/jobs.jsonl, one RawJob per line.
package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
)

const ManifestFileName = "jobs.jsonl"

// maxLineBytes bounds a single manifest line.
const maxLineBytes = 1 << 20

type Adapter struct {
	dir    string
	region string
}

func NewAdapter(dir, region string) *Adapter {
	return &Adapter{dir: dir, region: strings.ToLower(region)}
}

func (a *Adapter) Name() string {
	return "staging:" + a.region
}

// ManifestPath returns the file this adapter reads.
func (a *Adapter) ManifestPath() string {
	return filepath.Join(a.dir, a.region, ManifestFileName)
}

// Available reports whether the manifest exists yet.
func (a *Adapter) Available() bool {
	info, err := os.Stat(a.ManifestPath())
	return err == nil && !info.IsDir()
}

// FetchJobs reads the manifest afresh on every call so the crawler can
// rewrite it between cycles. Malformed lines are skipped with a warning.
func (a *Adapter) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	path := a.ManifestPath()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.FetchError{Source: a.Name(), Err: fmt.Errorf("manifest %s not found", path)}
	}
	if err != nil {
		return nil, &domain.FetchError{Source: a.Name(), Err: err}
	}
	defer f.Close()

	var jobs []domain.RawJob
	var bad []int

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var job domain.RawJob
		if err := json.Unmarshal([]byte(line), &job); err != nil {
			bad = append(bad, n)
			continue
		}
		jobs = append(jobs, job)
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.FetchError{Source: a.Name(), Err: fmt.Errorf("read manifest: %w", err)}
	}

	if len(bad) > 0 {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldSource: a.Name(),
			"lines":            bad,
		}).Warn("Skipped malformed manifest lines")
	}
	return jobs, nil
}
