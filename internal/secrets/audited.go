package secrets

import (
	"fmt"

	"github.com/benaskins/tether/internal/audit"
)

// AuditedStore wraps a Store and records every access to the audit log.
// Audit logging is best-effort: a failure to log never blocks the
// operation.
type AuditedStore struct {
	inner   Store
	audit   *audit.Logger
	actor   string // "cli" or "supervisor"
	trigger string
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner: inner,
		audit: auditLog,
		actor: actor,
	}
}

// WithTrigger returns a view of the store that tags its audit entries with
// trigger (e.g. "session_start", "secrets_changed").
func (s *AuditedStore) WithTrigger(trigger string) *AuditedStore {
	cp := *s
	cp.trigger = trigger
	return &cp
}

func (s *AuditedStore) record(action audit.Action, key string, err error) {
	e := audit.Entry{
		Action:  action,
		Key:     key,
		Actor:   s.actor,
		Trigger: s.trigger,
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.audit.Log(e)
}

func (s *AuditedStore) Set(key, value string) error {
	err := s.inner.Set(key, value)
	s.record(audit.ActionSecretWrite, key, err)
	if err != nil {
		return fmt.Errorf("audited store set: %w", err)
	}
	return nil
}

func (s *AuditedStore) Get(key string) (string, error) {
	val, err := s.inner.Get(key)
	s.record(audit.ActionSecretRead, key, err)
	if err != nil {
		return "", fmt.Errorf("audited store get: %w", err)
	}
	return val, nil
}

func (s *AuditedStore) List() ([]string, error) {
	return s.inner.List()
}

func (s *AuditedStore) Delete(key string) error {
	err := s.inner.Delete(key)
	s.record(audit.ActionSecretDelete, key, err)
	if err != nil {
		return fmt.Errorf("audited store delete: %w", err)
	}
	return nil
}

func (s *AuditedStore) GetMultiple(keys []string) (map[string]string, error) {
	result, err := s.inner.GetMultiple(keys)
	if err != nil {
		return nil, fmt.Errorf("audited store get multiple: %w", err)
	}
	for _, key := range keys {
		if _, ok := result[key]; ok {
			s.record(audit.ActionSecretRead, key, nil)
		} else {
			s.record(audit.ActionSecretRead, key, ErrNotFound)
		}
	}
	return result, nil
}
