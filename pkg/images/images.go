// Package images resolves the images and flavors referenced by node groups.
package images

import (
	"fmt"
	"time"

	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
	gocache "github.com/patrickmn/go-cache"
)

// Lookup resolves image and flavor identifiers
type Lookup interface {
	GetImage(id string) (*types.Image, error)
	GetFlavor(id string) (*types.Flavor, error)
}

// StoreLookup reads images and flavors from the registry kept in the store
type StoreLookup struct {
	store storage.Store
}

// NewStoreLookup creates a lookup backed by store
func NewStoreLookup(store storage.Store) *StoreLookup {
	return &StoreLookup{store: store}
}

// GetImage returns the registered image
func (l *StoreLookup) GetImage(id string) (*types.Image, error) {
	return l.store.GetImage(id)
}

// GetFlavor returns the registered flavor
func (l *StoreLookup) GetFlavor(id string) (*types.Flavor, error) {
	return l.store.GetFlavor(id)
}

// CachedLookup memoizes another Lookup for a bounded time. Errors are not
// cached.
type CachedLookup struct {
	next  Lookup
	cache *gocache.Cache
}

// NewCachedLookup wraps next with an expiring cache
func NewCachedLookup(next Lookup, ttl time.Duration) *CachedLookup {
	return &CachedLookup{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// GetImage returns the image, consulting the cache first
func (l *CachedLookup) GetImage(id string) (*types.Image, error) {
	key := "image/" + id
	if v, ok := l.cache.Get(key); ok {
		return v.(*types.Image), nil
	}
	image, err := l.next.GetImage(id)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, image, gocache.DefaultExpiration)
	return image, nil
}

// GetFlavor returns the flavor, consulting the cache first
func (l *CachedLookup) GetFlavor(id string) (*types.Flavor, error) {
	key := "flavor/" + id
	if v, ok := l.cache.Get(key); ok {
		return v.(*types.Flavor), nil
	}
	flavor, err := l.next.GetFlavor(id)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, flavor, gocache.DefaultExpiration)
	return flavor, nil
}

// Invalidate drops every cached entry
func (l *CachedLookup) Invalidate() {
	l.cache.Flush()
}

// NodeGroupImage returns the image a node group boots from: its own image
// or, failing that, the cluster default.
func NodeGroupImage(lookup Lookup, cluster *types.Cluster, ng *types.NodeGroup) (*types.Image, error) {
	id := ng.ImageID
	if id == "" {
		id = cluster.DefaultImageID
	}
	if id == "" {
		return nil, fmt.Errorf("node group %s has no image and the cluster has no default image", ng.Name)
	}
	return lookup.GetImage(id)
}
