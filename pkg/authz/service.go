// Package authz holds the role grant policy. Grants are stored as a casbin RBAC
// policy; the ability builder asks it which (object, action) pairs a role unlocks.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Service provides read access to the role grant policy.
type Service struct {
	cfg      Config
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	mu       sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	cfg = cfg.normalized()

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" {
		if !fileExists(cfg.ModelPath) {
			return nil, configError("model file %s does not exist", cfg.ModelPath)
		}
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to load model: %w", err)
	}

	var enf *casbin.Enforcer
	if cfg.PolicyPath != "" {
		if !fileExists(cfg.PolicyPath) {
			return nil, configError("policy file %s does not exist", cfg.PolicyPath)
		}
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enf, err = casbin.NewEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enf, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}

	return &Service{
		cfg:      cfg,
		enforcer: enf,
		logger:   logger,
	}, nil
}

// loadEmbeddedPolicy feeds the embedded CSV into the enforcer line by line.
func loadEmbeddedPolicy(enf *casbin.Enforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) >= 4:
			if _, err := enf.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) >= 3:
			if _, err := enf.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return configError("malformed policy line %q", line)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Permissions lists every (object, action) pair subject holds, following role
// inheritance (g lines).
func (s *Service) Permissions(subject string) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	rows, err := s.enforcer.GetImplicitPermissionsForUser(subject)
	recordLookup(subject, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("authz: permissions for %s: %w", subject, err)
	}

	out := make([]Permission, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		out = append(out, Permission{Object: row[1], Action: NormalizeAction(row[2])})
	}
	return out, nil
}

// Inspection explains an enforcement: whether it passed and the policy line that matched.
type Inspection struct {
	Allowed bool
	Matched []string
}

func (s *Service) Inspect(subject, object, action string) (Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed, explain, err := s.enforcer.EnforceEx(subject, object, action)
	if err != nil {
		return Inspection{}, fmt.Errorf("authz: inspect failed: %w", err)
	}
	return Inspection{Allowed: allowed, Matched: append([]string{}, explain...)}, nil
}

// ReloadPolicy reloads policy data from disk. The embedded policy is immutable.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

// ReloadOn reloads the policy each time signals fires, until ctx is done. A
// failed reload keeps the previous policy.
func (s *Service) ReloadOn(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if err := s.ReloadPolicy(ctx); err != nil {
				s.logger.WithError(err).Error("authz policy reload failed")
			}
		}
	}
}

var (
	defaultServiceOnce sync.Once
	defaultService     *Service
	defaultServiceErr  error
)

// Use returns a singleton Service configured via environment variables.
func Use() *Service {
	defaultServiceOnce.Do(func() {
		defaultService, defaultServiceErr = NewService(DefaultConfig())
	})
	if defaultServiceErr != nil {
		panic(defaultServiceErr)
	}
	return defaultService
}
