// Package audit implements a RESPMOD modifier that records a copy of every
// non-empty adapted response body to MySQL for compliance review, Fernet-
// encrypted when a key is configured, without altering the response itself. It is grounded on
// ppomes-TokenShield/icap-server-go/main.go's ICAPServer: the same
// sql.Open("mysql", dsn) connection setup and fernet.Key handling, turned
// from an inline token-lookup/decrypt pair into an insert-and-encrypt
// write path.
package audit

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
	_ "github.com/go-sql-driver/mysql"

	"github.com/bitz-icapd/icapd/icap"
)

// Config carries the MySQL DSN components and the base64 Fernet key used
// to encrypt stored bodies, mirroring ppomes-TokenShield's Config struct.
type Config struct {
	DBHost        string
	DBUser        string
	DBPass        string
	DBName        string
	EncryptionKey string // base64 (URL-safe) Fernet key
	Table         string // defaults to "audit_log"
}

// Audit is a Modifier that writes one row per adapted response with a
// non-empty body to MySQL, encrypting the body with Fernet before storage
// when a key is configured (storing it as-is otherwise), and never
// modifies the response it observes.
type Audit struct {
	name  string
	db    *sql.DB
	key   *fernet.Key
	table string
}

// New opens the MySQL connection and parses the Fernet key, per
// NewICAPServer's "Connect to MySQL" / "Initialize Fernet key" sequence.
func New(name string, cfg Config) (*Audit, error) {
	if name == "" {
		name = "audit"
	}
	table := cfg.Table
	if table == "" {
		table = "audit_log"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:3306)/%s?parseTime=true", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	var key *fernet.Key
	if cfg.EncryptionKey != "" {
		k, err := fernet.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: decode encryption key: %w", err)
		}
		key = k
	}

	return &Audit{name: name, db: db, key: key, table: table}, nil
}

// Close releases the database connection.
func (a *Audit) Close() error { return a.db.Close() }

// Name implements modifier.Modifier.
func (a *Audit) Name() string { return a.name }

// Preview always declines — auditing happens once the full body is known,
// at Modify.
func (a *Audit) Preview(req *icap.Request) (*icap.Response, error) {
	return icap.NewResponse(icap.StatusNoContent), nil
}

// Modify records the response body (if any) and reports no modification.
func (a *Audit) Modify(req *icap.Request) (*icap.Response, error) {
	body, err := req.FullBody()
	if err != nil {
		return nil, err
	}

	if len(body) > 0 {
		if err := a.record(req.RemoteAddr, body); err != nil {
			return nil, err
		}
	}

	return icap.NewResponse(icap.StatusNoContent), nil
}

// record encrypts body with the configured Fernet key (when present) and
// inserts a row keyed by its SHA-256 digest, following
// lookupToken/detokenizeJSON's QueryRow/VerifyAndDecrypt pairing but in
// the write direction: EncryptAndSign instead of VerifyAndDecrypt.
func (a *Audit) record(remoteAddr string, body []byte) error {
	digest := sha256.Sum256(body)

	var stored []byte
	if a.key != nil {
		enc, err := fernet.EncryptAndSign(body, a.key)
		if err != nil {
			return fmt.Errorf("audit: encrypt body: %w", err)
		}
		stored = enc
	} else {
		stored = body
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (remote_addr, body_sha256, body_encrypted, recorded_at) VALUES (?, ?, ?, ?)",
		a.table,
	)
	_, err := a.db.Exec(query, remoteAddr, hex.EncodeToString(digest[:]), stored, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit: insert row: %w", err)
	}
	return nil
}
