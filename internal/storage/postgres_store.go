package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/emergency-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveBooking(b *models.Booking) error {
	_, err := p.db.Exec(`INSERT INTO bookings(id, requester_id, emergency_type, pickup_lat, pickup_lng, status, unit_id, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.RequesterID, string(b.Emergency), b.Pickup.Lat, b.Pickup.Lng, string(b.Status), nullable(b.UnitID), b.CreatedAt)
	return err
}

func (p *PostgresStore) UpdateBooking(b *models.Booking) error {
	_, err := p.db.Exec(`UPDATE bookings SET status=$1, unit_id=$2, assigned_at=$3, completed_at=$4 WHERE id=$5`,
		string(b.Status), nullable(b.UnitID), nullTime(b.AssignedAt), nullTime(b.CompletedAt), b.ID)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
