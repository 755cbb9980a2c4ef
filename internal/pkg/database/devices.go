package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// GetDevice loads the full device record. Unknown identities return
// (nil, nil).
func (db *Database) GetDevice(ctx context.Context, identity string) (*model.DeviceRecord, error) {
	const query = `
	SELECT identity, secret, switches, status, is_identified, last_seen
	FROM Device
	WHERE identity = $1;
	`
	var (
		record   model.DeviceRecord
		switches []byte
		lastSeen *time.Time
	)
	err := db.conn.QueryRow(ctx, query, identity).Scan(
		&record.Identity, &record.Secret, &switches, &record.Status, &record.IsIdentified, &lastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(switches, &record.Switches); err != nil {
		return nil, err
	}
	if lastSeen != nil {
		record.LastSeen = *lastSeen
	}
	return &record, nil
}

// RegisterDevice provisions a device with its shared secret and factory
// switch map. Existing records are left untouched.
func (db *Database) RegisterDevice(ctx context.Context, identity, secret string, switches []model.SwitchConfig) error {
	data, err := json.Marshal(switches)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(ctx, `
		INSERT INTO Device (identity, secret, switches)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING;`, identity, secret, data)
	return err
}

// SaveSwitches replaces the switch configuration and state wholesale.
func (db *Database) SaveSwitches(ctx context.Context, identity string, switches []model.SwitchConfig) error {
	data, err := json.Marshal(switches)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(ctx, `
		UPDATE Device SET switches = $2, updated_at = now()
		WHERE identity = $1;`, identity, data)
	return err
}

func (db *Database) SetStatus(ctx context.Context, identity string, status model.DeviceStatus, identified bool) error {
	_, err := db.conn.Exec(ctx, `
		UPDATE Device SET status = $2, is_identified = $3, updated_at = now()
		WHERE identity = $1;`, identity, string(status), identified)
	return err
}

func (db *Database) TouchLastSeen(ctx context.Context, identity string, at time.Time) error {
	_, err := db.conn.Exec(ctx, `
		UPDATE Device SET last_seen = $2 WHERE identity = $1;`, identity, at)
	return err
}

// ListStale returns identities still marked online whose last_seen is older
// than the cutoff.
func (db *Database) ListStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	const query = `
	SELECT identity FROM Device
	WHERE status = 'online' AND (last_seen IS NULL OR last_seen < $1);
	`
	rows, err := db.conn.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return identities, nil
}
