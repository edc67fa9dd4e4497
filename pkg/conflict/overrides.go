package conflict

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// overrideFile is the YAML shape of the precedence override file.
type overrideFile struct {
	Overrides []overrideEntry `yaml:"overrides"`
}

type overrideEntry struct {
	// Pair names the two principle ids the override applies to.
	Pair []string `yaml:"pair"`

	// Winner is the principle whose rule prevails. Must be one of Pair.
	Winner string `yaml:"winner"`
}

// Overrides is the operator-curated precedence table. Lookups key on the
// sorted principle-id pair, so authoring order in the file does not matter.
type Overrides struct {
	mu      sync.RWMutex
	winners map[string]string

	path    string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	logger  *slog.Logger
}

// NewOverrides loads the override file and, when watch is set, hot-reloads it
// on writes. A missing file is an empty table, not an error, so deployments
// without overrides need no placeholder file.
func NewOverrides(path string, watch bool, logger *slog.Logger) (*Overrides, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Overrides{
		winners: make(map[string]string),
		path:    path,
		stopCh:  make(chan struct{}),
		logger:  logger.With("component", "conflict.overrides"),
	}
	if path == "" {
		return o, nil
	}

	if err := o.reload(); err != nil {
		return nil, err
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("conflict: create override watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("conflict: watch override file: %w", err)
		}
		o.watcher = watcher
		go o.watchLoop()
		o.logger.Info("precedence override file watched", "path", path)
	}
	return o, nil
}

// Lookup returns the winning principle id for a pair, if an override exists.
func (o *Overrides) Lookup(principleA, principleB string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	winner, ok := o.winners[pairKey(principleA, principleB)]
	return winner, ok
}

// Len returns the number of loaded overrides.
func (o *Overrides) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.winners)
}

// Close stops the watcher.
func (o *Overrides) Close() error {
	close(o.stopCh)
	if o.watcher != nil {
		return o.watcher.Close()
	}
	return nil
}

func (o *Overrides) reload() error {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			o.mu.Lock()
			o.winners = make(map[string]string)
			o.mu.Unlock()
			return nil
		}
		return fmt.Errorf("conflict: read override file: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("conflict: parse override file: %w", err)
	}

	winners := make(map[string]string, len(file.Overrides))
	for i, entry := range file.Overrides {
		if len(entry.Pair) != 2 {
			return fmt.Errorf("conflict: override %d: pair must name exactly two principles", i)
		}
		if entry.Winner != entry.Pair[0] && entry.Winner != entry.Pair[1] {
			return fmt.Errorf("conflict: override %d: winner %q is not in the pair", i, entry.Winner)
		}
		winners[pairKey(entry.Pair[0], entry.Pair[1])] = entry.Winner
	}

	o.mu.Lock()
	o.winners = winners
	o.mu.Unlock()
	o.logger.Info("precedence overrides loaded", "count", len(winners))
	return nil
}

func (o *Overrides) watchLoop() {
	for {
		select {
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := o.reload(); err != nil {
				// A half-written file keeps the previous table.
				o.logger.Error("override reload failed", "error", err)
			}
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.Error("override watcher error", "error", err)
		case <-o.stopCh:
			return
		}
	}
}

func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}
