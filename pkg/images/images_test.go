package images

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	images  map[string]*types.Image
	flavors map[string]*types.Flavor
	calls   int
}

func (l *countingLookup) GetImage(id string) (*types.Image, error) {
	l.calls++
	if img, ok := l.images[id]; ok {
		return img, nil
	}
	return nil, errors.NotFound("Image", id)
}

func (l *countingLookup) GetFlavor(id string) (*types.Flavor, error) {
	l.calls++
	if f, ok := l.flavors[id]; ok {
		return f, nil
	}
	return nil, errors.NotFound("Flavor", id)
}

func TestCachedLookup(t *testing.T) {
	next := &countingLookup{
		images:  map[string]*types.Image{"img": {ID: "img", Tags: []string{"centos"}}},
		flavors: map[string]*types.Flavor{"m1": {ID: "m1", Ephemeral: 20}},
	}
	lookup := NewCachedLookup(next, time.Minute)

	for i := 0; i < 3; i++ {
		img, err := lookup.GetImage("img")
		require.NoError(t, err)
		assert.True(t, img.HasTag("centos"))
	}
	assert.Equal(t, 1, next.calls)

	f, err := lookup.GetFlavor("m1")
	require.NoError(t, err)
	assert.Equal(t, 20, f.Ephemeral)
	assert.Equal(t, 2, next.calls)

	_, err = lookup.GetImage("missing")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	_, err = lookup.GetImage("missing")
	assert.Error(t, err)
	assert.Equal(t, 4, next.calls)

	lookup.Invalidate()
	_, err = lookup.GetImage("img")
	require.NoError(t, err)
	assert.Equal(t, 5, next.calls)
}

func TestNodeGroupImage(t *testing.T) {
	next := &countingLookup{images: map[string]*types.Image{
		"own":     {ID: "own"},
		"default": {ID: "default"},
	}}

	tests := []struct {
		name     string
		cluster  *types.Cluster
		ng       *types.NodeGroup
		expected string
		wantErr  bool
	}{
		{name: "own image", cluster: &types.Cluster{DefaultImageID: "default"}, ng: &types.NodeGroup{ImageID: "own"}, expected: "own"},
		{name: "cluster default", cluster: &types.Cluster{DefaultImageID: "default"}, ng: &types.NodeGroup{}, expected: "default"},
		{name: "no image", cluster: &types.Cluster{}, ng: &types.NodeGroup{Name: "ng"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NodeGroupImage(next, tt.cluster, tt.ng)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, img.ID)
		})
	}
}

func TestStoreLookup(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutImage(&types.Image{ID: "img", Username: "centos", Tags: []string{"centos"}}))
	lookup := NewStoreLookup(store)

	img, err := lookup.GetImage("img")
	require.NoError(t, err)
	assert.Equal(t, "centos", img.Username)

	_, err = lookup.GetFlavor("m1")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}
