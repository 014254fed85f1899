// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket namespaces a store by prefixing every key with the bucket name.
type Bucket string

func (b Bucket) prefixed(key []byte) []byte {
	out := make([]byte, 0, len(b)+len(key))
	out = append(out, b...)
	return append(out, key...)
}

// NewGetter wraps src so that reads are confined to the bucket.
func (b Bucket) NewGetter(src Getter) Getter {
	return &bucketGetter{b, src}
}

// NewPutter wraps src so that writes are confined to the bucket.
func (b Bucket) NewPutter(src Putter) Putter {
	return &bucketPutter{b, src}
}

// NewStore wraps src so that every operation is confined to the bucket.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{
		bucketGetter: bucketGetter{b, src},
		bucketPutter: bucketPutter{b, src},
		src:          src,
	}
}

type bucketGetter struct {
	bucket Bucket
	src    Getter
}

func (g *bucketGetter) Get(key []byte) ([]byte, error) { return g.src.Get(g.bucket.prefixed(key)) }
func (g *bucketGetter) Has(key []byte) (bool, error)   { return g.src.Has(g.bucket.prefixed(key)) }
func (g *bucketGetter) IsNotFound(err error) bool      { return g.src.IsNotFound(err) }

type bucketPutter struct {
	bucket Bucket
	src    Putter
}

func (p *bucketPutter) Put(key, val []byte) error { return p.src.Put(p.bucket.prefixed(key), val) }
func (p *bucketPutter) Delete(key []byte) error   { return p.src.Delete(p.bucket.prefixed(key)) }

type bucketStore struct {
	bucketGetter
	bucketPutter
	src Store
}

func (s *bucketStore) Snapshot() Snapshot {
	snap := s.src.Snapshot()
	return &bucketSnapshot{bucketGetter{s.bucketGetter.bucket, snap}, snap}
}

func (s *bucketStore) Bulk() Bulk {
	bulk := s.src.Bulk()
	return &bucketBulk{bucketPutter{s.bucketPutter.bucket, bulk}, bulk}
}

func (s *bucketStore) Iterate(r Range) Iterator {
	b := s.bucketGetter.bucket
	limit := util.BytesPrefix([]byte(b)).Limit
	if len(r.Limit) > 0 {
		limit = b.prefixed(r.Limit)
	}
	return &bucketIterator{
		Iterator: s.src.Iterate(Range{Start: b.prefixed(r.Start), Limit: limit}),
		strip:    len(b),
	}
}

type bucketSnapshot struct {
	bucketGetter
	snap Snapshot
}

func (s *bucketSnapshot) Release() { s.snap.Release() }

type bucketBulk struct {
	bucketPutter
	bulk Bulk
}

func (b *bucketBulk) Len() int     { return b.bulk.Len() }
func (b *bucketBulk) Write() error { return b.bulk.Write() }

// bucketIterator yields keys without the bucket prefix.
type bucketIterator struct {
	Iterator
	strip int
}

func (it *bucketIterator) Key() []byte { return it.Iterator.Key()[it.strip:] }
