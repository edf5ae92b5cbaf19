package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
const (
	BucketClusters           = "clusters"
	BucketClusterTemplates   = "cluster_templates"
	BucketNodeGroupTemplates = "node_group_templates"
	BucketDataSources        = "data_sources"
	BucketImages             = "images"
	BucketFlavors            = "flavors"
	BucketProvisionSteps     = "provision_steps"
)

// Buckets lists every bucket the store maintains
var Buckets = []string{
	BucketClusters,
	BucketClusterTemplates,
	BucketNodeGroupTemplates,
	BucketDataSources,
	BucketImages,
	BucketFlavors,
	BucketProvisionSteps,
}

var bucketKinds = map[string]string{
	BucketClusters:           "Cluster",
	BucketClusterTemplates:   "Cluster template",
	BucketNodeGroupTemplates: "Node group template",
	BucketDataSources:        "Data source",
	BucketImages:             "Image",
	BucketFlavors:            "Flavor",
	BucketProvisionSteps:     "Provision step",
}

// lockTimeout bounds the wait for the file lock held by another process
var lockTimeout = 5 * time.Second

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "sahara.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range Buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PutRaw stores an already-encoded value. Used by the replicated FSM.
func (s *BoltStore) PutRaw(bucket, key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket: %s", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// DeleteRaw removes a key. Deleting a missing key is not an error.
func (s *BoltStore) DeleteRaw(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket: %s", bucket)
		}
		return b.Delete([]byte(key))
	})
}

// Dump returns a copy of every bucket's contents
func (s *BoltStore) Dump() (map[string]map[string][]byte, error) {
	dump := make(map[string]map[string][]byte, len(Buckets))
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, bucket := range Buckets {
			entries := make(map[string][]byte)
			err := tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
				entries[string(k)] = append([]byte(nil), v...)
				return nil
			})
			if err != nil {
				return err
			}
			dump[bucket] = entries
		}
		return nil
	})
	return dump, err
}

// Load replaces the contents of every bucket with dump
func (s *BoltStore) Load(dump map[string]map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range Buckets {
			if err := tx.DeleteBucket([]byte(bucket)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			b, err := tx.CreateBucket([]byte(bucket))
			if err != nil {
				return err
			}
			for k, v := range dump[bucket] {
				if err := b.Put([]byte(k), v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *BoltStore) put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.PutRaw(bucket, key, data)
}

func get[T any](s *BoltStore, bucket, id string) (*T, error) {
	var out T
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return errors.NotFound(bucketKinds[bucket], id)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func list[T any](s *BoltStore, bucket string) ([]*T, error) {
	var items []*T
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, &item)
			return nil
		})
	})
	return items, err
}

// Cluster operations
func (s *BoltStore) CreateCluster(cluster *types.Cluster) error {
	return s.put(BucketClusters, cluster.ID, cluster)
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	return get[types.Cluster](s, BucketClusters, id)
}

func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	return list[types.Cluster](s, BucketClusters)
}

func (s *BoltStore) UpdateCluster(cluster *types.Cluster) error {
	return s.CreateCluster(cluster) // Same as create (upsert)
}

func (s *BoltStore) DeleteCluster(id string) error {
	return s.DeleteRaw(BucketClusters, id)
}

// Cluster template operations
func (s *BoltStore) CreateClusterTemplate(tmpl *types.ClusterTemplate) error {
	return s.put(BucketClusterTemplates, tmpl.ID, tmpl)
}

func (s *BoltStore) GetClusterTemplate(id string) (*types.ClusterTemplate, error) {
	return get[types.ClusterTemplate](s, BucketClusterTemplates, id)
}

func (s *BoltStore) ListClusterTemplates() ([]*types.ClusterTemplate, error) {
	return list[types.ClusterTemplate](s, BucketClusterTemplates)
}

func (s *BoltStore) UpdateClusterTemplate(tmpl *types.ClusterTemplate) error {
	return s.CreateClusterTemplate(tmpl)
}

func (s *BoltStore) DeleteClusterTemplate(id string) error {
	return s.DeleteRaw(BucketClusterTemplates, id)
}

// Node group template operations
func (s *BoltStore) CreateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error {
	return s.put(BucketNodeGroupTemplates, tmpl.ID, tmpl)
}

func (s *BoltStore) GetNodeGroupTemplate(id string) (*types.NodeGroupTemplate, error) {
	return get[types.NodeGroupTemplate](s, BucketNodeGroupTemplates, id)
}

func (s *BoltStore) ListNodeGroupTemplates() ([]*types.NodeGroupTemplate, error) {
	return list[types.NodeGroupTemplate](s, BucketNodeGroupTemplates)
}

func (s *BoltStore) UpdateNodeGroupTemplate(tmpl *types.NodeGroupTemplate) error {
	return s.CreateNodeGroupTemplate(tmpl)
}

func (s *BoltStore) DeleteNodeGroupTemplate(id string) error {
	return s.DeleteRaw(BucketNodeGroupTemplates, id)
}

// Data source operations
func (s *BoltStore) CreateDataSource(ds *types.DataSource) error {
	return s.put(BucketDataSources, ds.ID, ds)
}

func (s *BoltStore) GetDataSource(id string) (*types.DataSource, error) {
	return get[types.DataSource](s, BucketDataSources, id)
}

func (s *BoltStore) ListDataSources() ([]*types.DataSource, error) {
	return list[types.DataSource](s, BucketDataSources)
}

func (s *BoltStore) DeleteDataSource(id string) error {
	return s.DeleteRaw(BucketDataSources, id)
}

// Image and flavor operations
func (s *BoltStore) PutImage(image *types.Image) error {
	return s.put(BucketImages, image.ID, image)
}

func (s *BoltStore) GetImage(id string) (*types.Image, error) {
	return get[types.Image](s, BucketImages, id)
}

func (s *BoltStore) ListImages() ([]*types.Image, error) {
	return list[types.Image](s, BucketImages)
}

func (s *BoltStore) PutFlavor(flavor *types.Flavor) error {
	return s.put(BucketFlavors, flavor.ID, flavor)
}

func (s *BoltStore) GetFlavor(id string) (*types.Flavor, error) {
	return get[types.Flavor](s, BucketFlavors, id)
}

func (s *BoltStore) ListFlavors() ([]*types.Flavor, error) {
	return list[types.Flavor](s, BucketFlavors)
}

// Provision step operations
func (s *BoltStore) CreateProvisionStep(step *types.ProvisionStep) error {
	return s.put(BucketProvisionSteps, step.ID, step)
}

func (s *BoltStore) GetProvisionStep(id string) (*types.ProvisionStep, error) {
	return get[types.ProvisionStep](s, BucketProvisionSteps, id)
}

func (s *BoltStore) UpdateProvisionStep(step *types.ProvisionStep) error {
	return s.CreateProvisionStep(step)
}

// ListProvisionSteps returns the steps of a cluster, oldest first
func (s *BoltStore) ListProvisionSteps(clusterID string) ([]*types.ProvisionStep, error) {
	steps, err := list[types.ProvisionStep](s, BucketProvisionSteps)
	if err != nil {
		return nil, err
	}

	var filtered []*types.ProvisionStep
	for _, step := range steps {
		if step.ClusterID == clusterID {
			filtered = append(filtered, step)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

func (s *BoltStore) DeleteProvisionStep(id string) error {
	return s.DeleteRaw(BucketProvisionSteps, id)
}
