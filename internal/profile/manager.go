// Package profile provides cached, structured access to the candidate
// profile stored in SQLite, plus the prompt summary derived from it.
package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	GetAllProfileKeys() (map[string]string, error)
	ProfileVersion() (int, error)
	UpdateProfile(expectedVersion int, updates map[string]string) (int, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager caches the assembled Profile in front of the key-value store.
type Manager struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Profile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// Get reads all profile keys from storage (or cache) and assembles a
// structured Profile. Returns a zero-value Profile on empty store.
func (m *Manager) Get() (Profile, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := deepCopyProfile(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	// Slow path: write lock for cache miss.
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return deepCopyProfile(m.cached), nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys: %w", err)
	}

	p := buildProfile(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return deepCopyProfile(&p), nil
}

// Snapshot returns the raw key-value pairs with the current version, for
// callers doing compare-and-swap edits.
func (m *Manager) Snapshot() (map[string]string, int, error) {
	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return nil, 0, fmt.Errorf("loading profile keys: %w", err)
	}
	version, err := m.store.ProfileVersion()
	if err != nil {
		return nil, 0, fmt.Errorf("reading profile version: %w", err)
	}
	return keys, version, nil
}

// Update applies a batch of key upserts under the storage version check and
// invalidates the cache. The new version is returned; a stale
// expectedVersion surfaces storage.ErrVersionConflict.
func (m *Manager) Update(expectedVersion int, updates map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.store.UpdateProfile(expectedVersion, updates)
	if err != nil {
		return next, err
	}
	m.cached = nil
	return next, nil
}

// Summary returns a compact string representation of the profile suitable
// for injection into a prompt. Targets < 500 tokens (~2000 chars).
func (m *Manager) Summary() (string, error) {
	p, err := m.Get()
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(p), nil
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

func summarize(p Profile) string {
	var parts []string

	if p.Identity.Name != "" {
		head := p.Identity.Name
		if p.Identity.Headline != "" {
			head += ", " + p.Identity.Headline
		}
		parts = append(parts, head+".")
	} else if p.Identity.Headline != "" {
		parts = append(parts, p.Identity.Headline+".")
	}
	if p.Identity.Location != "" {
		parts = append(parts, "Based in "+p.Identity.Location+".")
	}

	if p.Summary != "" {
		parts = append(parts, p.Summary)
	}

	if len(p.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(p.Skills, ", ")+".")
	}

	for _, exp := range p.Experience {
		line := exp.Role
		if exp.Company != "" {
			line += " at " + exp.Company
		}
		if exp.Period != "" {
			line += " (" + exp.Period + ")"
		}
		if len(exp.Highlights) > 0 {
			line += ": " + strings.Join(exp.Highlights, "; ")
		}
		parts = append(parts, line+".")
	}

	if len(p.Achievements) > 0 {
		parts = append(parts, "Key achievements: "+strings.Join(p.Achievements, "; ")+".")
	}

	if len(parts) == 0 {
		if p.ResumeText != "" {
			return clampSummary(p.ResumeText)
		}
		return "Candidate profile: not yet configured."
	}

	return clampSummary(strings.Join(parts, " "))
}

func clampSummary(summary string) string {
	if len(summary) <= maxSummaryChars {
		return summary
	}
	// Ensure we don't split a multi-byte UTF-8 character.
	end := maxSummaryChars
	for end > 0 && !utf8.RuneStart(summary[end]) {
		end--
	}
	if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
		return summary[:idx]
	}
	return summary[:end]
}

func deepCopyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p

	if p.Skills != nil {
		cp.Skills = make([]string, len(p.Skills))
		copy(cp.Skills, p.Skills)
	}
	if p.Experience != nil {
		cp.Experience = make([]Experience, len(p.Experience))
		copy(cp.Experience, p.Experience)
		for i, exp := range p.Experience {
			if exp.Highlights != nil {
				cp.Experience[i].Highlights = make([]string, len(exp.Highlights))
				copy(cp.Experience[i].Highlights, exp.Highlights)
			}
		}
	}
	if p.Achievements != nil {
		cp.Achievements = make([]string, len(p.Achievements))
		copy(cp.Achievements, p.Achievements)
	}
	if p.Links != nil {
		cp.Links = make(map[string]string, len(p.Links))
		for k, v := range p.Links {
			cp.Links[k] = v
		}
	}
	return cp
}

// buildProfile assembles a Profile from flat key-value pairs.
// Keys use dot-notation: "identity.name", "identity.headline", "summary",
// "skills", "experience", "achievements", "links", "resume.text".
// List/map values are stored as JSON arrays/objects.
func buildProfile(keys map[string]string) Profile {
	var p Profile

	if v, ok := keys["identity.name"]; ok {
		p.Identity.Name = v
	}
	if v, ok := keys["identity.headline"]; ok {
		p.Identity.Headline = v
	}
	if v, ok := keys["identity.email"]; ok {
		p.Identity.Email = v
	}
	if v, ok := keys["identity.phone"]; ok {
		p.Identity.Phone = v
	}
	if v, ok := keys["identity.location"]; ok {
		p.Identity.Location = v
	}
	if v, ok := keys["summary"]; ok {
		p.Summary = v
	}
	if v, ok := keys["resume.text"]; ok {
		p.ResumeText = v
	}

	unmarshalProfileKey(keys, "skills", &p.Skills)
	unmarshalProfileKey(keys, "experience", &p.Experience)
	unmarshalProfileKey(keys, "achievements", &p.Achievements)
	unmarshalProfileKey(keys, "links", &p.Links)

	return p
}

func unmarshalProfileKey(keys map[string]string, key string, dst any) {
	v, ok := keys[key]
	if !ok || v == "" {
		return
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		slog.Warn("skipping malformed profile key", "key", key, "error", err)
	}
}
