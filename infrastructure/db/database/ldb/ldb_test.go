package ldb

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/infrastructure/db/database"
)

func newTestDB(t *testing.T) *LevelDB {
	db, err := NewLevelDB(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewLevelDB: %+v", err)
	}
	t.Cleanup(func() {
		err := db.Close()
		if err != nil {
			t.Errorf("Close: %+v", err)
		}
	})
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := newTestDB(t)
	key := database.MakeBucket([]byte("test")).Key([]byte("key"))

	_, err := db.Get(key)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Get of missing key: got %v, want ErrNotFound", err)
	}

	err = db.Put(key, []byte("value"))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	value, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	if string(value) != "value" {
		t.Errorf("Get: got %q, want %q", value, "value")
	}

	has, err := db.Has(key)
	if err != nil {
		t.Fatalf("Has: %+v", err)
	}
	if !has {
		t.Errorf("Has: got false, want true")
	}

	err = db.Delete(key)
	if err != nil {
		t.Fatalf("Delete: %+v", err)
	}
	has, err = db.Has(key)
	if err != nil {
		t.Fatalf("Has: %+v", err)
	}
	if has {
		t.Errorf("Has after delete: got true, want false")
	}
}

func TestTransactionAtomicity(t *testing.T) {
	db := newTestDB(t)
	bucket := database.MakeBucket([]byte("tx"))
	keyA := bucket.Key([]byte("a"))
	keyB := bucket.Key([]byte("b"))

	// A rolled-back transaction leaves no trace.
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %+v", err)
	}
	err = tx.Put(keyA, []byte("1"))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	err = tx.Rollback()
	if err != nil {
		t.Fatalf("Rollback: %+v", err)
	}
	has, err := db.Has(keyA)
	if err != nil {
		t.Fatalf("Has: %+v", err)
	}
	if has {
		t.Errorf("rolled-back write is visible")
	}

	// A committed transaction applies all of its writes.
	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("Begin: %+v", err)
	}
	err = tx.Put(keyA, []byte("1"))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	err = tx.Put(keyB, []byte("2"))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	err = tx.Commit()
	if err != nil {
		t.Fatalf("Commit: %+v", err)
	}
	for _, key := range []*database.Key{keyA, keyB} {
		has, err := db.Has(key)
		if err != nil {
			t.Fatalf("Has: %+v", err)
		}
		if !has {
			t.Errorf("committed write of %s is not visible", key)
		}
	}
}

func TestCursorOverBucket(t *testing.T) {
	db := newTestDB(t)
	bucket := database.MakeBucket([]byte("cursor"))
	otherBucket := database.MakeBucket([]byte("other"))

	for _, suffix := range []string{"a", "b", "c"} {
		err := db.Put(bucket.Key([]byte(suffix)), []byte(suffix))
		if err != nil {
			t.Fatalf("Put: %+v", err)
		}
	}
	err := db.Put(otherBucket.Key([]byte("x")), []byte("x"))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}

	cursor, err := db.Cursor(bucket)
	if err != nil {
		t.Fatalf("Cursor: %+v", err)
	}
	defer cursor.Close()

	seen := []string{}
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			t.Fatalf("Key: %+v", err)
		}
		seen = append(seen, string(key.Suffix()))
	}
	if len(seen) != 3 {
		t.Fatalf("cursor saw %d keys, want 3: %v", len(seen), seen)
	}
	for i, suffix := range []string{"a", "b", "c"} {
		if seen[i] != suffix {
			t.Errorf("cursor key %d: got %q, want %q", i, seen[i], suffix)
		}
	}
}
