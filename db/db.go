package db

import (
	"database/sql"
	"errors"
	"textchat/models"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var ErrNoRows = errors.New("no rows found")

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			contact TEXT NOT NULL,
			remark TEXT NOT NULL DEFAULT '',
			UNIQUE(owner, contact)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// hashSecret is the bcrypt form stored in users.password.
func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// SeedUsers creates the given accounts, resetting the secret of accounts that
// already exist.
func (db *DB) SeedUsers(creds []models.Credential) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range creds {
		hashed, err := hashSecret(c.Secret)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO users (login, password) VALUES (?, ?)
			 ON CONFLICT(login) DO UPDATE SET password = excluded.password`,
			c.Account, hashed,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) AuthenticateUser(login, password string) (bool, error) {
	var hashedPassword string
	err := db.conn.QueryRow("SELECT password FROM users WHERE login = ?", login).Scan(&hashedPassword)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil, nil
}

func (db *DB) UserExists(login string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE login = ?", login).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Logins returns every known account in creation order.
func (db *DB) Logins() ([]string, error) {
	rows, err := db.conn.Query("SELECT login FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logins []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		logins = append(logins, login)
	}

	return logins, rows.Err()
}

// Contact methods
func (db *DB) GetContacts(owner string) ([]models.Friend, error) {
	rows, err := db.conn.Query("SELECT contact, remark FROM contacts WHERE owner = ? ORDER BY id", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.Account, &f.Remark); err != nil {
			return nil, err
		}
		contacts = append(contacts, f)
	}

	return contacts, rows.Err()
}

// AddContactPair inserts owner->contact and contact->owner in one transaction.
func (db *DB) AddContactPair(owner, contact string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, edge := range [][2]string{{owner, contact}, {contact, owner}} {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO contacts (owner, contact, remark) VALUES (?, ?, '')",
			edge[0], edge[1],
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) UpdateContactRemark(owner, contact, remark string) error {
	result, err := db.conn.Exec("UPDATE contacts SET remark = ? WHERE owner = ? AND contact = ?", remark, owner, contact)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNoRows
	}

	return nil
}

func (db *DB) DeleteContact(owner, contact string) error {
	result, err := db.conn.Exec("DELETE FROM contacts WHERE owner = ? AND contact = ?", owner, contact)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNoRows
	}

	return nil
}
