package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/signature"
	"gopkg.in/yaml.v3"
)

/* Loader manages subscriptions declared in a seed file
 * Seeded subscriptions are applied at startup, keyed by id
 */

// Config represents the structure of the seed file
type Config struct {
	Subscriptions []Entry `yaml:"subscriptions"`
}

// Entry represents a single subscription in the YAML file
type Entry struct {
	ID          string   `yaml:"id"`
	OwnerID     string   `yaml:"owner_id"`
	URL         string   `yaml:"url"`
	Secret      string   `yaml:"secret"`
	EventTypes  []string `yaml:"event_types"`
	Description string   `yaml:"description"`
	Active      *bool    `yaml:"active"` // Default: true
}

// Loader holds the loaded subscriptions in file order
type Loader struct {
	subs []subscription.Subscription
}

// NewLoader creates a new seed loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the seed file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	return l.Parse(data)
}

// Parse validates every entry; nothing is kept when one of them is invalid
func (l *Loader) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing seed YAML: %w", err)
	}

	seen := make(map[string]bool, len(config.Subscriptions))
	subs := make([]subscription.Subscription, 0, len(config.Subscriptions))
	for i, e := range config.Subscriptions {
		sub, err := e.subscription()
		if err != nil {
			return fmt.Errorf("validating subscription %d (%s): %w", i+1, e.ID, err)
		}
		if seen[sub.ID] {
			return fmt.Errorf("validating subscription %d: duplicate id %s", i+1, sub.ID)
		}
		seen[sub.ID] = true
		subs = append(subs, sub)
	}

	l.subs = subs
	return nil
}

func (e Entry) subscription() (subscription.Subscription, error) {
	if e.ID == "" {
		return subscription.Subscription{}, errors.New("id is required")
	}
	if _, err := signature.ParseSecret(e.Secret); err != nil {
		return subscription.Subscription{}, fmt.Errorf("secret: %w", err)
	}

	types, err := event.ParseTypes(e.EventTypes)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("%w: %w", subscription.ErrInvalid, err)
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	sub := subscription.Subscription{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		URL:         e.URL,
		Secret:      e.Secret,
		EventTypes:  types,
		Description: e.Description,
		Active:      active,
	}
	if err := sub.Validate(); err != nil {
		return subscription.Subscription{}, err
	}
	return sub, nil
}

// List returns all loaded subscriptions
func (l *Loader) List() []subscription.Subscription {
	return slices.Clone(l.subs)
}

// Result counts what Apply changed
type Result struct {
	Created   int
	Updated   int
	Unchanged int
}

/* Apply makes the repository match the seed file
 * Unknown ids are inserted, drifted ones updated; counters are never touched
 * Running it twice in a row changes nothing the second time
 */
func (l *Loader) Apply(ctx context.Context, repo subscription.Repository, now time.Time) (Result, error) {
	var res Result
	for _, want := range l.subs {
		current, err := repo.Get(ctx, want.ID)
		if errors.Is(err, subscription.ErrNotFound) {
			want.CreatedAt = now
			want.UpdatedAt = now
			if err := repo.Insert(ctx, want); err != nil {
				return res, fmt.Errorf("inserting subscription %s: %w", want.ID, err)
			}
			res.Created++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("getting subscription %s: %w", want.ID, err)
		}
		if current.OwnerID != want.OwnerID {
			return res, fmt.Errorf("subscription %s belongs to another owner", want.ID)
		}

		changed := false
		if !sameFields(current, want) {
			current.URL = want.URL
			current.Description = want.Description
			current.EventTypes = want.EventTypes
			current.Active = want.Active
			current.UpdatedAt = now
			if err := repo.Update(ctx, current); err != nil {
				return res, fmt.Errorf("updating subscription %s: %w", want.ID, err)
			}
			changed = true
		}
		if current.Secret != want.Secret {
			if err := repo.UpdateSecret(ctx, want.ID, want.Secret, now); err != nil {
				return res, fmt.Errorf("updating secret of %s: %w", want.ID, err)
			}
			changed = true
		}

		if changed {
			res.Updated++
		} else {
			res.Unchanged++
		}
	}
	return res, nil
}

func sameFields(a, b subscription.Subscription) bool {
	return a.URL == b.URL &&
		a.Description == b.Description &&
		a.Active == b.Active &&
		slices.Equal(a.EventTypes, b.EventTypes)
}
