package replicator

import (
	"encoding/binary"
	"fmt"
	"slices"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/squash"
)

type BoltOptions struct {
	// IsTesting trades durability for speed: no fsync, small mmap.
	IsTesting bool
	MmapSize  int
	// Timeout bounds the wait for the file lock; zero means 10 seconds.
	Timeout time.Duration
}

// BoltStore is a Writer backed by a bbolt database. Every component gets a
// bucket named after it; keys are big-endian entity ids and values are the
// component codec's encoding.
type BoltStore struct {
	bdb        *bbolt.DB
	components []Component
	byName     map[string]*Component
}

var (
	_ Writer  = (*BoltStore)(nil)
	_ Batcher = (*BoltStore)(nil)
)

// OpenBolt opens or creates the database at path and makes sure a bucket
// exists for every component.
func OpenBolt(path string, components []Component, opt BoltOptions) (*BoltStore, error) {
	components = slices.Clone(components)
	byName, err := indexComponents(components)
	if err != nil {
		return nil, err
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("replicator: %w", err)
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		for _, comp := range components {
			if _, err := btx.CreateBucketIfNotExists(unsafeBytesFromString(comp.Name)); err != nil {
				return fmt.Errorf("bucket %q: %w", comp.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("replicator: %w", err)
	}

	return &BoltStore{
		bdb:        bdb,
		components: components,
		byName:     byName,
	}, nil
}

func (s *BoltStore) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}

func (s *BoltStore) Entities() (result []Entity, err error) {
	err = s.bdb.View(func(btx *bbolt.Tx) error {
		result, err = boltTx{s, btx}.Entities()
		return err
	})
	return
}

func (s *BoltStore) Get(e Entity, name string) (v any, found bool, err error) {
	err = s.bdb.View(func(btx *bbolt.Tx) error {
		v, found, err = boltTx{s, btx}.Get(e, name)
		return err
	})
	return
}

func (s *BoltStore) Put(e Entity, name string, v any) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return boltTx{s, btx}.Put(e, name, v)
	})
}

func (s *BoltStore) Delete(e Entity, name string) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return boltTx{s, btx}.Delete(e, name)
	})
}

// Batch runs fn inside a single read-write bbolt transaction.
func (s *BoltStore) Batch(fn func(w Writer) error) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return fn(boltTx{s, btx})
	})
}

type boltTx struct {
	s   *BoltStore
	btx *bbolt.Tx
}

func (tx boltTx) bucket(name string) (*bbolt.Bucket, *Component, error) {
	comp := tx.s.byName[name]
	if comp == nil {
		return nil, nil, fmt.Errorf("%w: unknown component %q", squash.ErrInvalidSchema, name)
	}
	b := tx.btx.Bucket(unsafeBytesFromString(name))
	if b == nil {
		return nil, nil, fmt.Errorf("bucket %q missing", name)
	}
	return b, comp, nil
}

func (tx boltTx) Entities() ([]Entity, error) {
	seen := make(map[Entity]struct{})
	for _, comp := range tx.s.components {
		b, _, err := tx.bucket(comp.Name)
		if err != nil {
			return nil, err
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) != 8 {
				return nil, fmt.Errorf("bucket %q: invalid entity key %x", comp.Name, k)
			}
			seen[Entity(binary.BigEndian.Uint64(k))] = struct{}{}
		}
	}
	result := make([]Entity, 0, len(seen))
	for e := range seen {
		result = append(result, e)
	}
	slices.Sort(result)
	return result, nil
}

func (tx boltTx) Get(e Entity, name string) (any, bool, error) {
	b, comp, err := tx.bucket(name)
	if err != nil {
		return nil, false, err
	}
	raw := b.Get(entityKey(e))
	if raw == nil {
		return nil, false, nil
	}
	// bbolt memory is only valid until the transaction ends
	v, err := decodeValue(comp.Codec, slices.Clone(raw))
	if err != nil {
		return nil, false, fmt.Errorf("%s of %d: %w", name, e, err)
	}
	return v, true, nil
}

func (tx boltTx) Put(e Entity, name string, v any) error {
	b, comp, err := tx.bucket(name)
	if err != nil {
		return err
	}
	data, err := encodeValue(comp.Codec, v)
	if err != nil {
		return fmt.Errorf("%s of %d: %w", name, e, err)
	}
	return b.Put(entityKey(e), data)
}

func (tx boltTx) Delete(e Entity, name string) error {
	b, _, err := tx.bucket(name)
	if err != nil {
		return err
	}
	return b.Delete(entityKey(e))
}

func entityKey(e Entity) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(e))
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
