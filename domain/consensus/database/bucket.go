package database

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

type dbBucket struct {
	bucket *infrastructuredatabase.Bucket
}

func (d dbBucket) Bucket(bucketBytes []byte) model.DBBucket {
	return newDBBucket(d.bucket.Bucket(bucketBytes))
}

func (d dbBucket) Key(suffix []byte) model.DBKey {
	return newDBKey(d.bucket.Key(suffix))
}

func (d dbBucket) Path() []byte {
	return d.bucket.Path()
}

func newDBBucket(bucket *infrastructuredatabase.Bucket) model.DBBucket {
	return dbBucket{bucket: bucket}
}

// MakeBucket creates a new Bucket using the given path of buckets.
func MakeBucket(path []byte) model.DBBucket {
	return newDBBucket(infrastructuredatabase.MakeBucket(path))
}

type dbKey struct {
	key *infrastructuredatabase.Key
}

func (d dbKey) Bytes() []byte {
	return d.key.Bytes()
}

func (d dbKey) String() string {
	return d.key.String()
}

func newDBKey(key *infrastructuredatabase.Key) model.DBKey {
	return dbKey{key: key}
}

func dbKeyToDatabaseKey(key model.DBKey) *infrastructuredatabase.Key {
	return key.(dbKey).key
}
