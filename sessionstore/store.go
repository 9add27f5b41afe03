// Package sessionstore is the persistence boundary for devices, packages, routers
// and sessions. All coordination between concurrent writers is expressed as SQL
// transactions: the store never relies on in-process locks.
//
// Timestamps are stored as unix seconds, which keeps the SQL dialect-neutral
// between the mysql driver used in production and the sqlite3 driver used in
// tests and single-box deployments.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zonawifi/portero/nasregistry"
)

var (
	// The device has no currently active session
	ErrNoActiveSession = errors.New("no active session")

	// Session creation referenced a missing or inactive package
	ErrUnknownPackage = errors.New("unknown or inactive package")

	// Session creation referenced a router IP that is not provisioned or not active
	ErrUnknownRouter = errors.New("unknown or inactive router")
)

type Store struct {
	dbHandle *sql.DB
}

// Opens the database with the specified driver ("mysql" or "sqlite3") and url
func Open(driver string, url string, maxOpenConns int) (*Store, error) {

	dbHandle, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", driver, err)
	}
	dbHandle.SetMaxOpenConns(maxOpenConns)

	if err := dbHandle.Ping(); err != nil {
		dbHandle.Close()
		return nil, fmt.Errorf("could not connect to %s database: %w", driver, err)
	}

	return &Store{dbHandle: dbHandle}, nil
}

// Wraps an already opened database handle
func NewStore(dbHandle *sql.DB) *Store {
	return &Store{dbHandle: dbHandle}
}

func (s *Store) Close() error {
	return s.dbHandle.Close()
}

// Creates a session for the device with the specified MAC address, as a single
// transaction: the device row is created or touched, the router and package are
// validated, any currently active session for the device is deactivated, and the
// new session is inserted with endTime = now + the package duration.
//
// The deactivate-then-activate pattern inside one transaction guarantees that at
// most one session per device is active at any instant, also when two payment
// confirmations for the same device race each other: the later-committing
// transaction wins and the earlier session is left inactive.
//
// The MAC address must already be in canonical form.
func (s *Store) CreateSession(ctx context.Context, macAddress string, packageId int64, paymentId string, routerIP string) (int64, error) {

	now := time.Now()

	tx, err := s.dbHandle.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Resolve or create the device. The last_seen update also locks the device
	// row, serializing concurrent session creations for the same device
	var deviceId int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM devices WHERE mac_address = ?", macAddress).Scan(&deviceId)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, "INSERT INTO devices (mac_address, last_seen) VALUES (?, ?)", macAddress, now.Unix())
		if err != nil {
			// A concurrent transaction may have created the device first. The
			// unique index on mac_address makes one of the inserts fail; fall
			// back to reading the winner's row
			if serr := tx.QueryRowContext(ctx, "SELECT id FROM devices WHERE mac_address = ?", macAddress).Scan(&deviceId); serr != nil {
				return 0, err
			}
		} else if deviceId, err = result.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE devices SET last_seen = ? WHERE id = ?", now.Unix(), deviceId); err != nil {
		return 0, err
	}

	// Resolve the router by its registered IP address
	var routerId int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM routers WHERE ip_address = ? AND active = 1", routerIP).Scan(&routerId)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRouter, routerIP)
	} else if err != nil {
		return 0, err
	}

	// Resolve the package duration
	var durationMinutes int64
	err = tx.QueryRowContext(ctx, "SELECT duration_minutes FROM packages WHERE id = ? AND active = 1", packageId).Scan(&durationMinutes)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPackage, packageId)
	} else if err != nil {
		return 0, err
	}

	// The latest paid package always wins. No stacking of remaining time
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET active = 0 WHERE device_id = ? AND active = 1", deviceId); err != nil {
		return 0, err
	}

	endTime := now.Add(time.Duration(durationMinutes) * time.Minute)
	result, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (device_id, package_id, payment_id, router_id, start_time, end_time, active) VALUES (?, ?, ?, ?, ?, ?, 1)",
		deviceId, packageId, paymentId, routerId, now.Unix(), endTime.Unix())
	if err != nil {
		return 0, err
	}
	sessionId, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return sessionId, nil
}

// Gets the currently active session for the device with the specified MAC
// address. Returns ErrNoActiveSession both for unknown devices and for devices
// without an active session. The caller is responsible for checking the end time:
// a session past its end time is returned as-is until the sweep deactivates it
func (s *Store) FindActiveSession(ctx context.Context, macAddress string) (*Session, error) {

	var session Session
	var startTime, endTime int64
	err := s.dbHandle.QueryRowContext(ctx,
		`SELECT s.id, s.device_id, s.package_id, s.payment_id, s.router_id, s.start_time, s.end_time, s.active
		 FROM sessions s JOIN devices d ON s.device_id = d.id
		 WHERE d.mac_address = ? AND s.active = 1
		 ORDER BY s.id DESC LIMIT 1`, macAddress).
		Scan(&session.Id, &session.DeviceId, &session.PackageId, &session.PaymentId, &session.RouterId, &startTime, &endTime, &session.Active)

	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSession
	} else if err != nil {
		return nil, err
	}

	session.StartTime = time.Unix(startTime, 0)
	session.EndTime = time.Unix(endTime, 0)

	return &session, nil
}

// Deactivates all sessions whose end time has passed, in one bulk update.
// Returns the number of sessions expired. Idempotent
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {

	result, err := s.dbHandle.ExecContext(ctx, "UPDATE sessions SET active = 0 WHERE active = 1 AND end_time <= ?", now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Deactivates the active session of one device immediately, regardless of its
// end time. Returns the number of sessions deactivated: zero is not an error
func (s *Store) Disconnect(ctx context.Context, macAddress string) (int64, error) {

	result, err := s.dbHandle.ExecContext(ctx,
		`UPDATE sessions SET active = 0
		 WHERE active = 1 AND device_id IN (SELECT id FROM devices WHERE mac_address = ?)`, macAddress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Gets the credentials of all active routers, feeding the NAS registry reload
func (s *Store) ListNasClients(ctx context.Context) ([]nasregistry.NasClient, error) {

	rows, err := s.dbHandle.QueryContext(ctx, "SELECT name, ip_address, shared_secret FROM routers WHERE active = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nasClients := make([]nasregistry.NasClient, 0)
	for rows.Next() {
		var nasClient nasregistry.NasClient
		if err := rows.Scan(&nasClient.Name, &nasClient.IPAddress, &nasClient.Secret); err != nil {
			return nil, err
		}
		nasClients = append(nasClients, nasClient)
	}

	return nasClients, rows.Err()
}

///////////////////////////////////////////////////////////////
// Provisioning and reporting queries. The admin surface owns these records;
// this core only reads them, except for seeding in tests and setup tools
///////////////////////////////////////////////////////////////

func (s *Store) CreatePackage(ctx context.Context, name string, durationMinutes int, active bool) (int64, error) {
	result, err := s.dbHandle.ExecContext(ctx,
		"INSERT INTO packages (name, duration_minutes, active) VALUES (?, ?, ?)", name, durationMinutes, active)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) CreateRouter(ctx context.Context, name string, ipAddress string, sharedSecret string, active bool) (int64, error) {
	result, err := s.dbHandle.ExecContext(ctx,
		"INSERT INTO routers (name, ip_address, shared_secret, active) VALUES (?, ?, ?, ?)", name, ipAddress, sharedSecret, active)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Session history of one device, newest first. Reporting only
func (s *Store) SessionsForDevice(ctx context.Context, macAddress string) ([]Session, error) {

	rows, err := s.dbHandle.QueryContext(ctx,
		`SELECT s.id, s.device_id, s.package_id, s.payment_id, s.router_id, s.start_time, s.end_time, s.active
		 FROM sessions s JOIN devices d ON s.device_id = d.id
		 WHERE d.mac_address = ?
		 ORDER BY s.id DESC`, macAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var session Session
		var startTime, endTime int64
		if err := rows.Scan(&session.Id, &session.DeviceId, &session.PackageId, &session.PaymentId, &session.RouterId, &startTime, &endTime, &session.Active); err != nil {
			return nil, err
		}
		session.StartTime = time.Unix(startTime, 0)
		session.EndTime = time.Unix(endTime, 0)
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
