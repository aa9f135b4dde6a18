package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/attenda/scheduling/internal/infrastructure/clients/postgres"
	"github.com/attenda/scheduling/pkg/config"
)

// schema creates the scheduling tables. The exclusion constraint on
// commitments is a backstop behind the advisory-lock serialization: even a
// write that slips past the in-transaction conflict check cannot commit an
// overlapping active interval for the same provider.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS providers (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id),
	user_id     TEXT NOT NULL,
	location_id TEXT,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_providers_tenant ON providers(tenant_id);

CREATE TABLE IF NOT EXISTS commitments (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL REFERENCES tenants(id),
	provider_id      TEXT NOT NULL REFERENCES providers(id),
	kind             TEXT NOT NULL CHECK (kind IN ('block', 'appointment')),
	location_id      TEXT,
	client_name      TEXT,
	start_at         TIMESTAMPTZ NOT NULL,
	end_at           TIMESTAMPTZ NOT NULL,
	status           TEXT,
	reason           TEXT,
	cancelled_reason TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (start_at < end_at),
	CONSTRAINT commitments_no_overlap EXCLUDE USING gist (
		tenant_id WITH =,
		provider_id WITH =,
		tstzrange(start_at, end_at) WITH &&
	) WHERE (kind = 'block' OR status IN ('scheduled', 'in_service'))
);

CREATE INDEX IF NOT EXISTS idx_commitments_provider_span
	ON commitments(tenant_id, provider_id, start_at, end_at);

CREATE TABLE IF NOT EXISTS payments (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL REFERENCES tenants(id),
	appointment_id TEXT NOT NULL REFERENCES commitments(id),
	amount_cents   BIGINT NOT NULL,
	currency       TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'refund_requested', 'refunded')),
	refunded_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payments_appointment ON payments(tenant_id, appointment_id);
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			DROP TABLE IF EXISTS payments, commitments, providers, tenants CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	if _, err := pgClient.DB().ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("Schema ready")

	now := time.Now().UTC()
	tenantID := uuid.New().String()

	if _, err := pgClient.DB().ExecContext(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2)`,
		tenantID, "Accra Wellness Group",
	); err != nil {
		log.Fatalf("Failed to seed tenant: %v", err)
	}

	providers := []struct {
		id, userID, locationID, name string
	}{
		{uuid.New().String(), uuid.New().String(), "osu-clinic", "Dr. Mensah"},
		{uuid.New().String(), uuid.New().String(), "osu-clinic", "Dr. Owusu"},
		{uuid.New().String(), uuid.New().String(), "tema-branch", "Dr. Asante"},
	}
	for _, p := range providers {
		if _, err := pgClient.DB().ExecContext(ctx,
			`INSERT INTO providers (id, tenant_id, user_id, location_id, name)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.id, tenantID, p.userID, p.locationID, p.name,
		); err != nil {
			log.Printf("Failed to seed provider %s: %v", p.name, err)
		}
	}

	// A morning block and a booked appointment for the first provider.
	tomorrow := now.Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if _, err := pgClient.DB().ExecContext(ctx,
		`INSERT INTO commitments (id, tenant_id, provider_id, kind, start_at, end_at, reason)
		 VALUES ($1, $2, $3, 'block', $4, $5, $6)`,
		uuid.New().String(), tenantID, providers[0].id,
		tomorrow.Add(8*time.Hour), tomorrow.Add(9*time.Hour), "ward rounds",
	); err != nil {
		log.Printf("Failed to seed block: %v", err)
	}

	appointmentID := uuid.New().String()
	if _, err := pgClient.DB().ExecContext(ctx,
		`INSERT INTO commitments (id, tenant_id, provider_id, kind, location_id, client_name, start_at, end_at, status)
		 VALUES ($1, $2, $3, 'appointment', $4, $5, $6, $7, 'scheduled')`,
		appointmentID, tenantID, providers[0].id, providers[0].locationID, "Ama Boateng",
		tomorrow.Add(10*time.Hour), tomorrow.Add(11*time.Hour),
	); err != nil {
		log.Printf("Failed to seed appointment: %v", err)
	}

	if _, err := pgClient.DB().ExecContext(ctx,
		`INSERT INTO payments (id, tenant_id, appointment_id, amount_cents, currency, status)
		 VALUES ($1, $2, $3, $4, $5, 'paid')`,
		uuid.New().String(), tenantID, appointmentID, int64(15000), "GHS",
	); err != nil {
		log.Printf("Failed to seed payment: %v", err)
	}

	log.Printf("Seeded tenant %s with %d providers", tenantID, len(providers))
}
