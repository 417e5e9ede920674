package ledger

import (
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"propmarket.dapp/pmc/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile    = "ledger.db"
	maxBusyTimeoutMs = 5000
)

// Store persists the reference ledger's properties to a SQLite database file.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	file string
}

// NewStore opens (or creates) the ledger database at filePath.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{file: absPath}
	if err := s.openDB(); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", filepath.Clean(s.file))

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS properties (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		property_address TEXT,
		property_type TEXT,
		image_url TEXT,
		price TEXT,
		for_sale INTEGER,
		rent_payment TEXT,
		for_rent INTEGER,
		tenant TEXT
	)`)
	if err != nil {
		return fmt.Errorf("create properties table: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

// LoadAll returns every stored property ordered by id, plus the tenant map.
// Ids must be contiguous from zero.
func (s *Store) LoadAll() ([]types.PropertyRecord, map[uint64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, owner, property_address, property_type, image_url,
		price, for_sale, rent_payment, for_rent, tenant FROM properties ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var props []types.PropertyRecord
	tenants := make(map[uint64]string)
	for rows.Next() {
		rec, tenant, err := scanProperty(rows)
		if err != nil {
			return nil, nil, err
		}
		if rec.ID != uint64(len(props)) {
			return nil, nil, fmt.Errorf("property ids not contiguous: expected %d, found %d", len(props), rec.ID)
		}
		props = append(props, rec)
		if tenant != "" {
			tenants[rec.ID] = tenant
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate properties: %w", err)
	}
	return props, tenants, nil
}

// Put inserts or replaces a property row.
func (s *Store) Put(rec types.PropertyRecord, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO properties (
		id, owner, property_address, property_type, image_url,
		price, for_sale, rent_payment, for_rent, tenant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			property_address = excluded.property_address,
			property_type = excluded.property_type,
			image_url = excluded.image_url,
			price = excluded.price,
			for_sale = excluded.for_sale,
			rent_payment = excluded.rent_payment,
			for_rent = excluded.for_rent,
			tenant = excluded.tenant`, propertyToArgs(rec, tenant)...)
	if err != nil {
		return fmt.Errorf("upsert property %d: %w", rec.ID, err)
	}
	return nil
}

func propertyToArgs(rec types.PropertyRecord, tenant string) []any {
	return []any{
		int64(rec.ID),
		rec.Owner,
		rec.PropertyAddress,
		rec.PropertyType,
		rec.ImageURL,
		rec.PriceOrZero().String(),
		boolToInt(rec.ForSale),
		rec.RentOrZero().String(),
		boolToInt(rec.ForRent),
		tenant,
	}
}

func scanProperty(scanner interface{ Scan(dest ...any) error }) (types.PropertyRecord, string, error) {
	var (
		id                      int64
		owner                   string
		address, kind, imageURL sql.NullString
		price, rent             sql.NullString
		forSale, forRent        sql.NullInt64
		tenant                  sql.NullString
	)

	if err := scanner.Scan(&id, &owner, &address, &kind, &imageURL,
		&price, &forSale, &rent, &forRent, &tenant); err != nil {
		return types.PropertyRecord{}, "", fmt.Errorf("scan property: %w", err)
	}

	priceVal, err := parseAmount(price.String)
	if err != nil {
		return types.PropertyRecord{}, "", fmt.Errorf("property %d price: %w", id, err)
	}
	rentVal, err := parseAmount(rent.String)
	if err != nil {
		return types.PropertyRecord{}, "", fmt.Errorf("property %d rent: %w", id, err)
	}

	rec := types.PropertyRecord{
		ID:              uint64(id),
		Owner:           owner,
		PropertyAddress: address.String,
		PropertyType:    kind.String,
		ImageURL:        imageURL.String,
		Price:           priceVal,
		ForSale:         forSale.Int64 != 0,
		RentPayment:     rentVal,
		ForRent:         forRent.Int64 != 0,
	}
	return rec, tenant.String, nil
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
