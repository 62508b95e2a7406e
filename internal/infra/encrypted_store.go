package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	usageDBName = "usage.db"
)

// ErrSecretNotFound is returned by GetSecret for unknown keys.
var ErrSecretNotFound = errors.New("secret not found")

// EncryptedDayStore implements domain.DayStore and domain.SecretStore
// using a SQLCipher encrypted SQLite database.
type EncryptedDayStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedDayStore opens (or creates) the encrypted usage database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedDayStore(dataDir string, key []byte) (*EncryptedDayStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, usageDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// A wrong key surfaces here as "file is not a database"
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedDayStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates the schema if it doesn't exist.
func (s *EncryptedDayStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS day_records (
		date TEXT PRIMARY KEY,
		total_time INTEGER NOT NULL,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- domain.DayStore implementation ---

// Load returns the record for date or domain.ErrDayNotFound.
func (s *EncryptedDayStore) Load(date string) (*domain.DayRecord, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM day_records WHERE date = ?`, date).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDayNotFound
	}
	if err != nil {
		return nil, err
	}

	var day domain.DayRecord
	if err := json.Unmarshal([]byte(data), &day); err != nil {
		return nil, fmt.Errorf("corrupt day record %s: %w", date, err)
	}
	return &day, nil
}

// Save upserts the whole record in one statement.
func (s *EncryptedDayStore) Save(day *domain.DayRecord) error {
	data, err := json.Marshal(day)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO day_records (date, total_time, data, updated_at)
		VALUES (?, ?, ?, ?)`,
		day.Date, day.TotalTime, string(data), time.Now().Unix(),
	)
	return err
}

// Dates lists stored day keys in ascending order.
func (s *EncryptedDayStore) Dates() ([]string, error) {
	rows, err := s.db.Query(`SELECT date FROM day_records ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedDayStore) Path() string {
	return s.dbPath
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (s *EncryptedDayStore) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%q: %w", key, ErrSecretNotFound)
	}
	return value, err
}

// SetSecret stores a secret.
func (s *EncryptedDayStore) SetSecret(key, value string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, now)
	return err
}

// Close releases the database connection.
func (s *EncryptedDayStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedDayStore implements both interfaces.
var _ domain.DayStore = (*EncryptedDayStore)(nil)
var _ domain.SecretStore = (*EncryptedDayStore)(nil)
