package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/security"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Conductor is the single entry point for reading and writing persisted
// provisioning state. It applies defaults, resolves templates and enforces
// protection and usage rules before anything reaches the store.
type Conductor struct {
	store   storage.Store
	secrets *security.SecretsManager
	broker  *events.Broker
	keyGen  func() (string, string, error)
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger
}

// Option configures a Conductor
type Option func(*Conductor)

// WithSecrets seals management keys and data source credentials at rest
func WithSecrets(sm *security.SecretsManager) Option {
	return func(c *Conductor) { c.secrets = sm }
}

// WithBroker publishes conductor changes on the given broker
func WithBroker(b *events.Broker) Option {
	return func(c *Conductor) { c.broker = b }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Conductor) { c.now = now }
}

// WithIDGenerator overrides the identifier source
func WithIDGenerator(newID func() string) Option {
	return func(c *Conductor) { c.newID = newID }
}

// WithKeyGenerator overrides management key pair generation
func WithKeyGenerator(gen func() (string, string, error)) Option {
	return func(c *Conductor) { c.keyGen = gen }
}

// New creates a conductor over the given store
func New(store storage.Store, opts ...Option) *Conductor {
	c := &Conductor{
		store:  store,
		keyGen: security.GenerateKeyPair,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: log.WithComponent("conductor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store
func (c *Conductor) Store() storage.Store {
	return c.store
}

func (c *Conductor) publish(typ events.EventType, clusterID, message string, metadata map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		ID:        c.newID(),
		Type:      typ,
		ClusterID: clusterID,
		Timestamp: c.now(),
		Message:   message,
		Metadata:  metadata,
	})
}

func tenantOf(rc *types.RequestContext) string {
	if rc == nil {
		return ""
	}
	return rc.TenantID
}

// visible reports whether an object owned by tenant is readable by rc
func visible(rc *types.RequestContext, tenant string, public bool) bool {
	if rc == nil || rc.IsAdmin || public {
		return true
	}
	return rc.TenantID == "" || rc.TenantID == tenant
}

// matches reports whether the encoded entity has every filter field equal
// to the requested value
func matches(entity interface{}, filters types.Values) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	encoded, err := types.Encode(entity)
	if err != nil {
		return false, err
	}
	for k, want := range filters {
		got, ok := encoded[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false, nil
		}
	}
	return true, nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// protectedFromUpdate refuses updates of protected objects unless the update
// itself clears the flag.
func protectedFromUpdate(kind, id string, protected, isDefault bool, values types.Values, ignoreProtOnDefault bool) error {
	if !protected || (isDefault && ignoreProtOnDefault) {
		return nil
	}
	if v, ok := values["is_protected"]; ok {
		if b, ok := v.(bool); ok && !b {
			return nil
		}
	}
	return errors.UpdateFailed(fmt.Sprintf("%s with id '%s' could not be updated because it's marked as protected", kind, id))
}

func protectedFromDeletion(kind, id string, protected, isDefault bool, ignoreProtOnDefault bool) error {
	if !protected || (isDefault && ignoreProtOnDefault) {
		return nil
	}
	return errors.DeletionFailed(fmt.Sprintf("%s with id '%s' could not be deleted because it's marked as protected", kind, id))
}
