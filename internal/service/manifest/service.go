// Package manifest owns the deployed manifest: it validates, stores and
// caches manifests and hands the active one to query compilation.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure"
	"golang.org/x/sync/singleflight"

	"semlayer/internal/declarative"
	"semlayer/internal/domain"
	"semlayer/internal/semantic"
)

// maxCompiled bounds the number of validated manifests kept in memory.
const maxCompiled = 16

// Compiled is a manifest that passed eager validation.
type Compiled struct {
	Manifest     *domain.Manifest
	Fingerprint  string
	DeploymentID string
}

// Status describes the most recent deployment and the manifest in service.
type Status struct {
	DeploymentID string                  `json:"deploymentId,omitempty"`
	Status       domain.DeploymentStatus `json:"status,omitempty"`
	Fingerprint  string                  `json:"fingerprint,omitempty"`
	Error        string                  `json:"error,omitempty"`
	CreatedAt    *time.Time              `json:"createdAt,omitempty"`
	Active       string                  `json:"activeFingerprint,omitempty"`
	Manifest     *domain.Manifest        `json:"manifest,omitempty"`
}

// DeployResult reports the outcome of a deploy.
type DeployResult struct {
	Deployment *domain.Deployment `json:"deployment"`
	Changed    bool               `json:"changed"`
	Plan       *declarative.Plan  `json:"-"`
}

// Service holds the active manifest and the validated-manifest cache.
type Service struct {
	repo   domain.DeploymentRepository
	logger *slog.Logger

	mu       sync.RWMutex
	current  *Compiled
	compiled map[string]*Compiled
	order    []string

	deployMu sync.Mutex
	sf       singleflight.Group
}

// NewService creates a Service. repo may be nil, in which case deployments
// are kept in memory only.
func NewService(repo domain.DeploymentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:     repo,
		logger:   logger,
		compiled: make(map[string]*Compiled),
	}
}

// Fingerprint returns a stable content hash of m.
func Fingerprint(m *domain.Manifest) (string, error) {
	if m == nil {
		return "", domain.ErrValidation("manifest is required")
	}
	h, err := hashstructure.Hash(m, nil)
	if err != nil {
		return "", fmt.Errorf("fingerprint manifest: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}

// Current returns the active manifest, if any.
func (s *Service) Current() (*Compiled, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Compile validates m eagerly and caches the result by fingerprint.
// Concurrent calls for the same manifest share one validation.
func (s *Service) Compile(_ context.Context, m *domain.Manifest) (*Compiled, error) {
	fp, err := Fingerprint(m)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.compiled[fp]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, shared := s.sf.Do(fp, func() (interface{}, error) {
		if err := semantic.ValidateManifest(m); err != nil {
			return nil, err
		}
		c := &Compiled{Manifest: m, Fingerprint: fp}
		s.remember(c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("manifest compile shared", "fingerprint", fp)
	}
	return v.(*Compiled), nil
}

func (s *Service) remember(c *Compiled) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.compiled[c.Fingerprint]; ok {
		return
	}
	s.compiled[c.Fingerprint] = c
	s.order = append(s.order, c.Fingerprint)
	for len(s.order) > maxCompiled {
		evict := s.order[0]
		s.order = s.order[1:]
		if s.current != nil && s.current.Fingerprint == evict {
			s.order = append(s.order, evict)
			continue
		}
		delete(s.compiled, evict)
	}
}

// Deploy validates m, records it as a deployment and makes it active.
// Deploying the active manifest again is a no-op.
func (s *Service) Deploy(ctx context.Context, m *domain.Manifest) (*DeployResult, error) {
	s.deployMu.Lock()
	defer s.deployMu.Unlock()

	fp, err := Fingerprint(m)
	if err != nil {
		return nil, err
	}

	prev, _ := s.Current()
	if prev != nil && prev.Fingerprint == fp {
		d := &domain.Deployment{ID: prev.DeploymentID, Fingerprint: fp, Status: domain.DeploymentReady}
		if s.repo != nil && prev.DeploymentID != "" {
			if stored, err := s.repo.GetByID(ctx, prev.DeploymentID); err == nil {
				d = stored
			}
		}
		return &DeployResult{Deployment: d, Changed: false, Plan: &declarative.Plan{}}, nil
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	d := &domain.Deployment{Fingerprint: fp, Status: domain.DeploymentPreparing, Manifest: body}
	if s.repo != nil {
		if d, err = s.repo.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("record deployment: %w", err)
		}
	}

	c, compileErr := s.Compile(ctx, m)
	if compileErr != nil {
		d.Status = domain.DeploymentFailed
		d.Error = compileErr.Error()
		if err := s.setStatus(ctx, d); err != nil {
			return nil, errors.Join(compileErr, err)
		}
		s.logger.Warn("manifest deploy failed", "deployment", d.ID, "fingerprint", fp, "error", compileErr)
		return nil, compileErr
	}

	d.Status = domain.DeploymentReady
	if err := s.setStatus(ctx, d); err != nil {
		return nil, err
	}

	var prevManifest *domain.Manifest
	if prev != nil {
		prevManifest = prev.Manifest
	}
	plan := declarative.Diff(m, prevManifest)

	s.mu.Lock()
	s.current = &Compiled{Manifest: c.Manifest, Fingerprint: fp, DeploymentID: d.ID}
	s.mu.Unlock()

	summary := plan.Summary()
	s.logger.Info("manifest deployed",
		"deployment", d.ID,
		"fingerprint", fp,
		"creates", summary.Creates,
		"updates", summary.Updates,
		"deletes", summary.Deletes,
	)
	return &DeployResult{Deployment: d, Changed: true, Plan: plan}, nil
}

func (s *Service) setStatus(ctx context.Context, d *domain.Deployment) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, d.ID, d.Status, d.Error); err != nil {
		return fmt.Errorf("update deployment %s: %w", d.ID, err)
	}
	return nil
}

// Restore activates the most recent READY deployment from the store. It
// returns false when there is none.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	d, err := s.repo.Latest(ctx, domain.DeploymentReady)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("load latest deployment: %w", err)
	}

	var m domain.Manifest
	if err := json.Unmarshal(d.Manifest, &m); err != nil {
		return false, fmt.Errorf("decode deployment %s: %w", d.ID, err)
	}
	c, err := s.Compile(ctx, &m)
	if err != nil {
		return false, fmt.Errorf("revalidate deployment %s: %w", d.ID, err)
	}

	s.mu.Lock()
	s.current = &Compiled{Manifest: c.Manifest, Fingerprint: c.Fingerprint, DeploymentID: d.ID}
	s.mu.Unlock()
	s.logger.Info("manifest restored", "deployment", d.ID, "fingerprint", c.Fingerprint)
	return true, nil
}

// Status reports the most recent deployment, whatever its outcome, along
// with the manifest in service.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	cur, ok := s.Current()
	if ok {
		st.Active = cur.Fingerprint
		st.Manifest = cur.Manifest
	}

	if s.repo == nil {
		if !ok {
			return nil, domain.ErrNotFound("no manifest deployed")
		}
		st.Status = domain.DeploymentReady
		st.Fingerprint = cur.Fingerprint
		return st, nil
	}

	d, err := s.repo.Latest(ctx, "")
	if err != nil {
		return nil, err
	}
	created := d.CreatedAt
	st.DeploymentID = d.ID
	st.Status = d.Status
	st.Fingerprint = d.Fingerprint
	st.Error = d.Error
	st.CreatedAt = &created
	return st, nil
}

// History lists recent deployments, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.Deployment, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, limit)
}
