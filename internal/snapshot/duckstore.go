package snapshot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
	"github.com/vmihailenco/msgpack/v5"
)

// DuckStore keeps one DuckDB file per model file: file_<id>.duckdb.
type DuckStore struct {
	dir string
	mu  sync.RWMutex
	// known maps file ids to database paths
	known map[string]string
}

// itemBlob holds the nested parts of a snapshot, stored as msgpack.
type itemBlob struct {
	PropertySets []models.PropertySet `msgpack:"propertySets"`
	Links        map[string][]int     `msgpack:"links,omitempty"`
}

// NewDuckStore creates a store rooted at dir and indexes existing snapshots.
func NewDuckStore(dir string) (*DuckStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	ds := &DuckStore{dir: dir, known: make(map[string]string)}
	ds.scanExisting()
	return ds, nil
}

func (ds *DuckStore) scanExisting() {
	entries, err := os.ReadDir(ds.dir)
	if err != nil {
		fmt.Printf("[SnapshotStore] Warning: failed to scan snapshot directory: %v\n", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "file_") || filepath.Ext(name) != ".duckdb" {
			continue
		}
		fileID := strings.TrimSuffix(strings.TrimPrefix(name, "file_"), ".duckdb")
		ds.known[fileID] = filepath.Join(ds.dir, name)
	}
	fmt.Printf("[SnapshotStore] Found %d existing snapshots\n", len(ds.known))
}

// Path returns where the snapshot of a file is stored.
func (ds *DuckStore) Path(fileID string) string {
	return filepath.Join(ds.dir, fmt.Sprintf("file_%s.duckdb", fileID))
}

func openDB(path string) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Save writes the snapshot into a fresh database file, replacing any
// previous snapshot of the file.
func (ds *DuckStore) Save(ctx context.Context, fileID string, data []models.ItemSnapshot) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	path := ds.Path(fileID)
	tmp := path + ".tmp"
	os.Remove(tmp)

	start := time.Now()
	if err := writeSnapshot(ctx, tmp, data); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install snapshot: %w", err)
	}
	ds.known[fileID] = path
	fmt.Printf("[SnapshotStore] Saved %d items for file %s in %v\n", len(data), shortID(fileID), time.Since(start))
	return nil
}

func writeSnapshot(ctx context.Context, path string, data []models.ItemSnapshot) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE items (
			id             BIGINT PRIMARY KEY,
			kind           VARCHAR NOT NULL,
			name           VARCHAR,
			selectable     BOOLEAN NOT NULL,
			always_visible BOOLEAN NOT NULL,
			data           BLOB
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create items table: %w", err)
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE meta (saved_at BIGINT NOT NULL, item_count INTEGER NOT NULL)`)
	if err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "items")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i := range data {
			snap := &data[i]
			blob, err := msgpack.Marshal(&itemBlob{PropertySets: snap.PropertySets, Links: snap.Links})
			if err != nil {
				return fmt.Errorf("failed to encode item %d: %w", snap.ID, err)
			}
			if err := appender.AppendRow(int64(snap.ID), snap.Kind, snap.Name, snap.Selectable, snap.AlwaysVisible, blob); err != nil {
				return fmt.Errorf("failed to append item %d: %w", snap.ID, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	_, err = conn.ExecContext(ctx, `INSERT INTO meta VALUES (?, ?)`, time.Now().UnixMilli(), len(data))
	if err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}
	return nil
}

// Load reads the snapshot of a file in express id order.
func (ds *DuckStore) Load(ctx context.Context, fileID string) ([]models.ItemSnapshot, error) {
	if !ds.Has(fileID) {
		return nil, ErrNotFound
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	db, err := openDB(ds.Path(fileID))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, kind, name, selectable, always_visible, data FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer rows.Close()

	out := make([]models.ItemSnapshot, 0)
	for rows.Next() {
		var (
			snap models.ItemSnapshot
			name sql.NullString
			blob []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Kind, &name, &snap.Selectable, &snap.AlwaysVisible, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.Name = name.String
		if len(blob) > 0 {
			var b itemBlob
			if err := msgpack.Unmarshal(blob, &b); err != nil {
				return nil, fmt.Errorf("failed to decode item %d: %w", snap.ID, err)
			}
			snap.PropertySets = b.PropertySets
			snap.Links = b.Links
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Has reports whether a snapshot exists for the file.
func (ds *DuckStore) Has(fileID string) bool {
	ds.mu.RLock()
	_, ok := ds.known[fileID]
	ds.mu.RUnlock()
	if ok {
		return true
	}

	path := ds.Path(fileID)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	ds.mu.Lock()
	ds.known[fileID] = path
	ds.mu.Unlock()
	return true
}

// Delete removes the snapshot of a file. Missing snapshots are not an error.
func (ds *DuckStore) Delete(fileID string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.known, fileID)
	if err := os.Remove(ds.Path(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	os.Remove(ds.Path(fileID) + ".wal")
	fmt.Printf("[SnapshotStore] Deleted snapshot for file %s\n", shortID(fileID))
	return nil
}

// List returns the ids of every file with a snapshot, sorted.
func (ds *DuckStore) List() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	ids := make([]string, 0, len(ds.known))
	for id := range ds.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
