// Package batch runs the full tax-kind catalogue as one resumable session.
// Progress is checkpointed to JSON after every download, so a crashed or
// interrupted run restarts where it left off instead of re-exporting
// everything.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const checkpointTimeLayout = "2006-01-02 15:04:05"

// Progress is the persisted state of one batch session.
type Progress struct {
	SessionID         string   `json:"session_id"`
	CUITLogin         string   `json:"cuit_login"`
	CUITTarget        string   `json:"cuit_target"`
	FechaDesde        string   `json:"fecha_desde"`
	FechaHasta        string   `json:"fecha_hasta"`
	StartedAt         string   `json:"started_at"`
	CompletedTaxCodes []string `json:"completed_tax_codes"`
	CurrentTaxCode    string   `json:"current_tax_code,omitempty"`
	DownloadedFiles   []string `json:"all_downloaded_files"`
	Status            string   `json:"status"`
	LastUpdated       string   `json:"last_updated"`
}

// Completed reports whether a tax kind already finished in this session.
func (p *Progress) Completed(code string) bool {
	for _, c := range p.CompletedTaxCodes {
		if c == code {
			return true
		}
	}
	return false
}

// NewProgress starts a fresh session.
func NewProgress(cuitLogin, cuitTarget, desde, hasta string) *Progress {
	now := time.Now().Format(checkpointTimeLayout)
	return &Progress{
		SessionID:   strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		CUITLogin:   cuitLogin,
		CUITTarget:  cuitTarget,
		FechaDesde:  desde,
		FechaHasta:  hasta,
		StartedAt:   now,
		Status:      StatusInProgress,
		LastUpdated: now,
	}
}

// Store reads and writes checkpoint files in one directory.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, "checkpoint_"+sessionID+".json")
}

// Save writes the progress, refreshing its LastUpdated stamp.
func (s *Store) Save(p *Progress) error {
	p.LastUpdated = time.Now().Format(checkpointTimeLayout)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := os.WriteFile(s.path(p.SessionID), data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Load reads a session's checkpoint. A missing file returns (nil, nil).
func (s *Store) Load(sessionID string) (*Progress, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", sessionID, err)
	}
	return &p, nil
}

// FindLatest returns the most recently written in-progress checkpoint, or nil
// when there is nothing to resume.
func (s *Store) FindLatest() (*Progress, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "checkpoint_*.json"))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		session string
		mtime   time.Time
	}
	var candidates []candidate
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		session := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "checkpoint_"), ".json")
		candidates = append(candidates, candidate{session: session, mtime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].mtime.After(candidates[j].mtime)
	})

	for _, c := range candidates {
		p, err := s.Load(c.session)
		if err != nil || p == nil {
			continue
		}
		if p.Status == StatusInProgress {
			return p, nil
		}
	}
	return nil, nil
}
