package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvProvider keeps the key from an environment variable. SelectKey re-reads
// the configured env files so a key written there after startup is picked up
// without a restart. It doubles as the generation client's key source.
type EnvProvider struct {
	Variable string
	Files    []string

	mu  sync.RWMutex
	key string
}

func NewEnvProvider(variable string, files []string) *EnvProvider {
	return &EnvProvider{
		Variable: variable,
		Files:    append([]string(nil), files...),
		key:      strings.TrimSpace(os.Getenv(variable)),
	}
}

func (p *EnvProvider) APIKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key
}

func (p *EnvProvider) HasSelectedKey(ctx context.Context) (bool, error) {
	return p.APIKey() != "", nil
}

func (p *EnvProvider) SelectKey(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var existing []string
	for _, f := range p.Files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	key := strings.TrimSpace(os.Getenv(p.Variable))
	if len(existing) > 0 {
		values, err := godotenv.Read(existing...)
		if err != nil {
			return fmt.Errorf("read env files: %w", err)
		}
		if v := strings.TrimSpace(values[p.Variable]); v != "" {
			key = v
		}
	}
	if key == "" {
		return fmt.Errorf("%s is not set", p.Variable)
	}

	p.mu.Lock()
	p.key = key
	p.mu.Unlock()
	return nil
}

// StaticProvider reports a fixed key; SelectKey installs Next when set.
type StaticProvider struct {
	mu   sync.Mutex
	Key  string
	Next string
}

func (p *StaticProvider) APIKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Key
}

func (p *StaticProvider) HasSelectedKey(ctx context.Context) (bool, error) {
	return p.APIKey() != "", nil
}

func (p *StaticProvider) SelectKey(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Next != "" {
		p.Key = p.Next
	}
	if p.Key == "" {
		return fmt.Errorf("no key to select")
	}
	return nil
}
